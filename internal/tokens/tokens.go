// Package tokens estimates the size of an assembled request.
package tokens

import (
	"context"
	"math"
	"strings"

	"github.com/opencode-ai/workflow/internal/logging"
	"github.com/opencode-ai/workflow/pkg/types"
)

const (
	// WordFactor is the average number of tokens per whitespace-separated word.
	WordFactor = 1.3
	// FixedOverhead accounts for role and formatting tokens around a segment.
	FixedOverhead = 10
	// ImageTokens is the flat cost charged per image block.
	ImageTokens = 1600
)

// Counter returns an exact token count for a request.
type Counter interface {
	CountTokens(ctx context.Context, req *types.Request) (int, error)
}

// Estimate is a token count broken down by segment.
type Estimate struct {
	System  int `json:"system"`
	Task    int `json:"task"`
	Context int `json:"context"`
	Images  int `json:"images"`
	// Unestimated is the number of PDF blocks the heuristic cannot size.
	Unestimated int `json:"unestimated"`
	Total       int `json:"total"`
	// Exact is set when Total came from a Counter.
	Exact bool `json:"exact"`
}

// Segment estimates one segment of text. Empty text costs nothing.
func Segment(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words)*WordFactor)) + FixedOverhead
}

// Heuristic estimates the request built from the given blocks.
func Heuristic(system, user []types.ContentBlock) Estimate {
	var e Estimate
	var sys, task, ctx strings.Builder

	for _, b := range system {
		sys.WriteString(b.Text)
		sys.WriteByte('\n')
	}
	for _, b := range user {
		switch {
		case !b.IsDocument():
			task.WriteString(b.Text)
		case b.Kind == types.KindImage:
			e.Images += ImageTokens
		case b.Kind == types.KindPDF:
			e.Unestimated++
		default:
			ctx.WriteString(b.Text)
			ctx.WriteByte('\n')
		}
	}

	e.System = Segment(sys.String())
	e.Task = Segment(task.String())
	e.Context = Segment(ctx.String())
	e.Total = e.System + e.Task + e.Context + e.Images
	return e
}

// Count returns an exact count from counter when available and falls back to
// the heuristic on failure. A nil counter means heuristic only.
func Count(ctx context.Context, counter Counter, req *types.Request, system, user []types.ContentBlock) Estimate {
	e := Heuristic(system, user)
	if counter == nil || req == nil {
		return e
	}

	n, err := counter.CountTokens(ctx, req)
	if err != nil {
		logging.Warn().Err(err).Int("heuristic", e.Total).Msg("Exact token count failed, using estimate")
		return e
	}
	e.Total = n
	e.Exact = true
	return e
}
