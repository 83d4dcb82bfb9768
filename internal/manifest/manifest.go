// Package manifest resolves context sources into the ordered block sequence
// of a single request.
//
// Sources are collected in a fixed priority (dependency outputs, declared
// pattern, CLI pattern, declared files, CLI files) for the CONTEXT group and
// the same chain without dependencies for the INPUT group. The resulting
// blocks are then reordered for caching: PDFs, text, images, task.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/opencode-ai/workflow/internal/config"
	"github.com/opencode-ai/workflow/internal/ingest"
	"github.com/opencode-ai/workflow/internal/logging"
	"github.com/opencode-ai/workflow/internal/project"
	"github.com/opencode-ai/workflow/pkg/types"
)

var (
	ErrDependencyOutputMissing = errors.New("dependency output missing")
	ErrContextFileMissing      = errors.New("context file missing")
	ErrInputFileMissing        = errors.New("input file missing")
	ErrSystemPromptMissing     = errors.New("system prompt missing")
	ErrEmptyTask               = errors.New("task is empty")
)

// DateFormat is date-only so the stamp changes at most once a day.
const DateFormat = "2006-01-02"

// Sources are one-off sources supplied on the command line.
type Sources struct {
	ContextPattern string
	ContextFiles   []string
	InputPattern   string
	InputFiles     []string
}

// Request holds everything needed to build a manifest.
type Request struct {
	Config *config.Resolved
	// Project may be nil for one-off tasks outside a project.
	Project  *project.Project
	Workflow string
	CLI      Sources
	// WorkDir anchors relative CLI paths.
	WorkDir   string
	PromptDir string
	Task      string
	Now       time.Time
}

// Manifest is the ordered content of one request.
type Manifest struct {
	System []types.ContentBlock
	// User always ends with the single task block.
	User []types.ContentBlock
}

// Documents returns the user blocks that precede the task.
func (m *Manifest) Documents() []types.ContentBlock {
	if len(m.User) == 0 {
		return nil
	}
	return m.User[:len(m.User)-1]
}

// Aggregator builds manifests from a filesystem.
type Aggregator struct {
	fs afero.Fs
}

// New creates an Aggregator.
func New(fs afero.Fs) *Aggregator {
	return &Aggregator{fs: fs}
}

// Aggregate resolves all sources. Any missing named file or dependency
// aborts the build.
func (a *Aggregator) Aggregate(ctx context.Context, req *Request) (*Manifest, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, ErrEmptyTask
	}

	system, err := a.systemBlocks(req)
	if err != nil {
		return nil, err
	}

	contextRefs, err := a.contextRefs(req)
	if err != nil {
		return nil, err
	}
	inputRefs, err := a.inputRefs(req)
	if err != nil {
		return nil, err
	}

	refs := append(contextRefs, inputRefs...)
	docs, err := ingest.IngestAll(ctx, a.fs, refs)
	if err != nil {
		return nil, err
	}

	user := append(orderForCache(docs), types.ContentBlock{
		Kind:  types.KindText,
		Group: types.GroupTask,
		Text:  req.Task,
	})

	m := &Manifest{System: system, User: user}
	logging.Info().
		Int("system", len(system)).
		Int("context", len(contextRefs)).
		Int("input", len(inputRefs)).
		Int("documents", len(m.Documents())).
		Msg("Aggregated request content")

	return m, nil
}

func (a *Aggregator) systemBlocks(req *Request) ([]types.ContentBlock, error) {
	var blocks []types.ContentBlock

	for _, name := range req.Config.List(config.KeySystemPrompts) {
		path := filepath.Join(req.PromptDir, name+".txt")
		data, err := afero.ReadFile(a.fs, path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s (expected %s)", ErrSystemPromptMissing, name, path)
			}
			return nil, err
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			logging.Warn().Str("prompt", name).Str("path", path).Msg("Skipping empty system prompt")
			continue
		}
		blocks = append(blocks, types.ContentBlock{
			Kind:       types.KindText,
			Group:      types.GroupSystem,
			SourcePath: path,
			Text:       text,
			Stable:     true,
		})
	}

	if req.Project != nil {
		data, err := afero.ReadFile(a.fs, req.Project.DescriptionPath())
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if desc := strings.TrimSpace(string(data)); desc != "" {
			blocks = append(blocks, types.ContentBlock{
				Kind:       types.KindText,
				Group:      types.GroupSystem,
				SourcePath: req.Project.DescriptionPath(),
				Text:       "<project-description>\n" + desc + "\n</project-description>",
				Stable:     true,
			})
		}
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	blocks = append(blocks, types.ContentBlock{
		Kind:  types.KindText,
		Group: types.GroupSystem,
		Text:  "Today's date: " + now.Format(DateFormat),
	})
	return blocks, nil
}

// kindRank orders documents for caching: PDFs, then text, then images.
func kindRank(k types.BlockKind) int {
	switch k {
	case types.KindPDF:
		return 0
	case types.KindText:
		return 1
	default:
		return 2
	}
}

// orderForCache groups documents by kind, keeping source order within a kind.
func orderForCache(docs []types.ContentBlock) []types.ContentBlock {
	out := append([]types.ContentBlock(nil), docs...)
	sort.SliceStable(out, func(i, j int) bool {
		return kindRank(out[i].Kind) < kindRank(out[j].Kind)
	})
	return out
}
