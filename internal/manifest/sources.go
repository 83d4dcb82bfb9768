package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/opencode-ai/workflow/internal/config"
	"github.com/opencode-ai/workflow/internal/ingest"
	"github.com/opencode-ai/workflow/internal/logging"
	"github.com/opencode-ai/workflow/internal/project"
	"github.com/opencode-ai/workflow/pkg/types"
)

// maxSuggestDistance bounds "did you mean" suggestions.
const maxSuggestDistance = 3

// DependencyError reports a DEPENDS_ON entry without a shared output.
type DependencyError struct {
	Name       string
	Suggestion string
}

func (e *DependencyError) Error() string {
	msg := fmt.Sprintf("%s: no output for %q", ErrDependencyOutputMissing, e.Name)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

func (e *DependencyError) Unwrap() error {
	return ErrDependencyOutputMissing
}

// Suggest returns the candidate closest to name, or "" if none is close.
func Suggest(name string, candidates []string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, c := range candidates {
		if c == name {
			continue
		}
		if d := levenshtein.ComputeDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func (a *Aggregator) contextRefs(req *Request) ([]ingest.Ref, error) {
	var refs []ingest.Ref

	deps, err := a.dependencyRefs(req)
	if err != nil {
		return nil, err
	}
	refs = append(refs, deps...)

	more, err := a.groupRefs(req, types.GroupContext,
		config.KeyContextPattern, config.KeyContextFiles,
		req.CLI.ContextPattern, req.CLI.ContextFiles, ErrContextFileMissing)
	if err != nil {
		return nil, err
	}
	return append(refs, more...), nil
}

func (a *Aggregator) inputRefs(req *Request) ([]ingest.Ref, error) {
	return a.groupRefs(req, types.GroupInput,
		config.KeyInputPattern, config.KeyInputFiles,
		req.CLI.InputPattern, req.CLI.InputFiles, ErrInputFileMissing)
}

// groupRefs collects one group in priority order: declared pattern, CLI
// pattern, declared files, CLI files.
func (a *Aggregator) groupRefs(req *Request, group types.BlockGroup, patternKey, filesKey config.Key,
	cliPattern string, cliFiles []string, missing error) ([]ingest.Ref, error) {
	var refs []ingest.Ref

	if pattern := req.Config.String(patternKey); pattern != "" {
		paths, err := a.glob(a.declaredBase(req, patternKey), pattern)
		if err != nil {
			return nil, err
		}
		refs = appendRefs(refs, paths, group)
	}

	if pattern := strings.TrimSpace(cliPattern); pattern != "" {
		paths, err := a.glob(req.WorkDir, pattern)
		if err != nil {
			return nil, err
		}
		refs = appendRefs(refs, paths, group)
	}

	base := a.declaredBase(req, filesKey)
	for _, f := range req.Config.List(filesKey) {
		path, err := a.requireFile(base, f, missing)
		if err != nil {
			return nil, err
		}
		refs = appendRefs(refs, []string{path}, group)
	}

	for _, f := range cliFiles {
		if strings.TrimSpace(f) == "" {
			continue
		}
		path, err := a.requireFile(req.WorkDir, f, missing)
		if err != nil {
			return nil, err
		}
		refs = appendRefs(refs, []string{path}, group)
	}
	return refs, nil
}

func appendRefs(refs []ingest.Ref, paths []string, group types.BlockGroup) []ingest.Ref {
	for _, p := range paths {
		refs = append(refs, ingest.Ref{Path: p, Group: group})
	}
	return refs
}

// declaredBase is the directory a config-declared path is relative to: the
// root of the tier that declared it, or the project root for tiers without one.
func (a *Aggregator) declaredBase(req *Request, k config.Key) string {
	if root := req.Config.Origin(k).Root; root != "" {
		return root
	}
	if req.Project != nil {
		return req.Project.Root
	}
	return req.WorkDir
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

func (a *Aggregator) requireFile(base, name string, missing error) (string, error) {
	path := resolvePath(base, name)
	info, err := a.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", missing, path)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", missing, path)
	}
	return path, nil
}

// glob expands pattern relative to base. Zero matches is not an error.
func (a *Aggregator) glob(base, pattern string) ([]string, error) {
	root, rel := doublestar.SplitPattern(filepath.ToSlash(resolvePath(base, pattern)))

	fsys := afero.NewIOFS(afero.NewBasePathFs(a.fs, root))
	matches, err := doublestar.Glob(fsys, rel, doublestar.WithFilesOnly())
	if err != nil {
		if errors.Is(err, doublestar.ErrBadPattern) {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		return nil, err
	}
	sort.Strings(matches)

	paths := make([]string, len(matches))
	for i, m := range matches {
		paths[i] = filepath.Join(root, filepath.FromSlash(m))
	}
	logging.Debug().Str("pattern", pattern).Int("matches", len(paths)).Msg("Expanded pattern")
	return paths, nil
}

// dependencyRefs resolves DEPENDS_ON entries to their shared outputs.
func (a *Aggregator) dependencyRefs(req *Request) ([]ingest.Ref, error) {
	deps := req.Config.List(config.KeyDependsOn)
	if len(deps) == 0 {
		return nil, nil
	}

	var refs []ingest.Ref
	for _, dep := range deps {
		if req.Project == nil {
			return nil, fmt.Errorf("%w: %q (not inside a project)", ErrDependencyOutputMissing, dep)
		}
		if err := project.ValidateName(dep); err != nil {
			return nil, fmt.Errorf("%s entry %q: %w", config.KeyDependsOn, dep, err)
		}
		if dep == req.Workflow {
			return nil, fmt.Errorf("%w: %q depends on itself", ErrDependencyOutputMissing, dep)
		}
		path, err := a.findOutput(req.Project, dep)
		if err != nil {
			return nil, err
		}
		if path == "" {
			candidates, _ := req.Project.Workflows(a.fs)
			return nil, &DependencyError{Name: dep, Suggestion: Suggest(dep, candidates)}
		}
		refs = append(refs, ingest.Ref{
			Path:  path,
			Group: types.GroupDependency,
			Label: dep,
		})
	}
	return refs, nil
}

// findOutput returns the most recently written shared output of name, or ""
// if there is none.
func (a *Aggregator) findOutput(p *project.Project, name string) (string, error) {
	matches, err := p.SharedOutputs(a.fs, name)
	if err != nil {
		return "", err
	}

	var best string
	var bestTime int64
	for _, m := range matches {
		info, err := a.fs.Stat(m)
		if err != nil {
			continue
		}
		if t := info.ModTime().UnixNano(); best == "" || t > bestTime {
			best, bestTime = m, t
		}
	}
	return best, nil
}
