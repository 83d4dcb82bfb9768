// Package cache places cache breakpoints on an ordered block sequence.
//
// A breakpoint asks the remote service to cache the request prefix up to and
// including the marked block. The service accepts at most MaxBreakpoints
// markers per request, counted across system and user blocks.
//
// Placement:
//
//   - System side: one marker on the last stable system block. The trailing
//     date stamp is unstable and never marked.
//   - User side: nothing when the task is the only block. Otherwise the last
//     document before the task is marked, plus the last block of every
//     same-kind run that is followed by a different kind (pdf → text → image).
//   - Over budget, kind transitions closest to the task are dropped first.
//     The final pre-task marker is always kept.
package cache

import (
	"errors"
	"fmt"
	"sort"

	"github.com/opencode-ai/workflow/pkg/types"
)

// MaxBreakpoints is the platform limit on cache markers per request.
const MaxBreakpoints = 4

var (
	ErrCacheBudgetExceeded = errors.New("cache breakpoint budget exceeded")
	ErrNoTask              = errors.New("user blocks must end with the task")
)

// Plan holds the indices of marked blocks.
type Plan struct {
	System []int
	User   []int
}

// Len returns the total number of markers.
func (p Plan) Len() int {
	return len(p.System) + len(p.User)
}

// PlanBreakpoints computes the cache plan for a request. user must end with
// the task block.
func PlanBreakpoints(system, user []types.ContentBlock) (Plan, error) {
	if len(user) == 0 || user[len(user)-1].Group != types.GroupTask {
		return Plan{}, ErrNoTask
	}

	var plan Plan
	if i := lastStable(system); i >= 0 {
		plan.System = []int{i}
	}

	docs := user[:len(user)-1]
	if len(docs) == 0 {
		return plan, nil
	}

	budget := MaxBreakpoints - len(plan.System)
	final := len(docs) - 1
	if !docs[final].Stable {
		return plan, nil
	}
	plan.User = append(plan.User, final)
	budget--

	transitions := kindTransitions(docs)
	if len(transitions) > budget {
		// transitions are in sequence order; keep the earliest
		transitions = transitions[:budget]
	}
	plan.User = append(plan.User, transitions...)
	sort.Ints(plan.User)

	return plan, nil
}

// Apply sets the Cache flag on every planned block and clears it elsewhere.
func Apply(system, user []types.ContentBlock, plan Plan) {
	for i := range system {
		system[i].Cache = false
	}
	for i := range user {
		user[i].Cache = false
	}
	for _, i := range plan.System {
		system[i].Cache = true
	}
	for _, i := range plan.User {
		user[i].Cache = true
	}
}

// Count returns the number of marked blocks across all sequences.
func Count(seqs ...[]types.ContentBlock) int {
	n := 0
	for _, seq := range seqs {
		for _, b := range seq {
			if b.Cache {
				n++
			}
		}
	}
	return n
}

// Validate checks marked sequences against the placement rules.
func Validate(system, user []types.ContentBlock) error {
	if n := Count(system, user); n > MaxBreakpoints {
		return fmt.Errorf("%w: %d markers", ErrCacheBudgetExceeded, n)
	}
	for i, b := range append(append([]types.ContentBlock(nil), system...), user...) {
		if !b.Cache {
			continue
		}
		if b.Group == types.GroupTask {
			return fmt.Errorf("%w: task block is marked", ErrCacheBudgetExceeded)
		}
		if !b.Stable {
			return fmt.Errorf("%w: unstable block %d is marked", ErrCacheBudgetExceeded, i)
		}
	}
	return nil
}

func lastStable(blocks []types.ContentBlock) int {
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].Stable {
			return i
		}
	}
	return -1
}

// kindTransitions returns the last index of each stable same-kind run that is
// followed by a block of another kind. The final document is excluded.
func kindTransitions(docs []types.ContentBlock) []int {
	var out []int
	for i := 0; i < len(docs)-1; i++ {
		if docs[i].Kind != docs[i+1].Kind && docs[i].Stable {
			out = append(out, i)
		}
	}
	return out
}
