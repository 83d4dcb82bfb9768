// Package output writes workflow artifacts.
//
// Each workflow keeps its latest result in .workflow/<name>/output.<fmt>.
// A new run never overwrites it in place: output is streamed into a temp file
// in the same directory, the previous artifact is renamed to
// output-<YYYYMMDDHHMMSS>.<fmt>, and the temp file is renamed into place.
// A copy of the result is then placed in .workflow/output/<name>.<fmt>, where
// dependent workflows look it up.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/opencode-ai/workflow/internal/logging"
	"github.com/opencode-ai/workflow/internal/project"
)

// BackupTimeFormat is the timestamp layout of backup file names.
const BackupTimeFormat = "20060102150405"

const (
	artifactBase = "output"
	// lockBase names the run lock, kept outside the output.* namespace.
	lockBase = "run"
)

var (
	ErrNoOutput      = errors.New("no output")
	ErrInvalidFormat = errors.New("invalid output format")
)

// Writer creates artifacts for the workflows of one project.
type Writer struct {
	fs      afero.Fs
	project *project.Project
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*FileLock
}

// NewWriter creates a Writer. now defaults to time.Now.
func NewWriter(fs afero.Fs, p *project.Project, now func() time.Time) *Writer {
	if now == nil {
		now = time.Now
	}
	return &Writer{
		fs:      fs,
		project: p,
		now:     now,
		locks:   make(map[string]*FileLock),
	}
}

func (w *Writer) getLock(path string) *FileLock {
	w.mu.Lock()
	defer w.mu.Unlock()

	lock, ok := w.locks[path]
	if !ok {
		lock = NewFileLock(w.fs, path)
		w.locks[path] = lock
	}
	return lock
}

// ArtifactPath returns the path of a workflow's current artifact.
func (w *Writer) ArtifactPath(name, format string) string {
	return filepath.Join(w.project.WorkflowDir(name), artifactBase+"."+format)
}

// SharedPath returns the path dependents read a workflow's output from.
func (w *Writer) SharedPath(name, format string) string {
	return filepath.Join(w.project.OutputDir(), name+"."+format)
}

// Latest returns the current artifact of a workflow, whatever its format.
func (w *Writer) Latest(name string) (string, error) {
	dir := w.project.WorkflowDir(name)
	entries, err := afero.ReadDir(w.fs, dir)
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}

	var candidates []string
	for _, e := range entries {
		if !e.IsDir() && isArtifact(e.Name()) {
			candidates = append(candidates, filepath.Join(dir, e.Name()))
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoOutput, name)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return modTime(w.fs, candidates[i]).After(modTime(w.fs, candidates[j]))
	})
	return candidates[0], nil
}

// isArtifact matches output.<fmt>. Backups, temp files and the run lock do
// not match.
func isArtifact(base string) bool {
	ext := filepath.Ext(base)
	switch ext {
	case "", ".tmp", ".lock":
		return false
	}
	return strings.TrimSuffix(base, ext) == artifactBase
}

func modTime(fs afero.Fs, path string) time.Time {
	info, err := fs.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Begin starts a new artifact. The workflow stays locked until the artifact
// is committed or aborted.
func (w *Writer) Begin(name, format string) (*Artifact, error) {
	if format == "" || format == "tmp" || format == "lock" || strings.ContainsAny(format, `/\.`) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	dir := w.project.WorkflowDir(name)
	if err := w.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	lock := w.getLock(filepath.Join(dir, lockBase))
	if !lock.TryLock() {
		logging.Info().Str("workflow", name).Msg("Waiting for another run of this workflow")
		if err := lock.Lock(); err != nil {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
	}

	tmp, err := afero.TempFile(w.fs, dir, artifactBase+"-*.tmp")
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	return &Artifact{
		w:      w,
		name:   name,
		format: format,
		tmp:    tmp,
		lock:   lock,
	}, nil
}

// Artifact is an output being written.
type Artifact struct {
	w      *Writer
	name   string
	format string
	tmp    afero.File
	lock   *FileLock
	done   bool
}

// Result describes a committed artifact.
type Result struct {
	Path    string
	Backup  string
	Shared  string
	Added   int
	Removed int
}

// Write appends to the artifact.
func (a *Artifact) Write(p []byte) (int, error) {
	return a.tmp.Write(p)
}

// Commit moves the artifact into place, backing up the previous one.
func (a *Artifact) Commit() (*Result, error) {
	if a.done {
		return nil, errors.New("artifact already finished")
	}
	a.done = true
	defer a.lock.Unlock()

	fs := a.w.fs
	tmpPath := a.tmp.Name()
	if err := a.tmp.Close(); err != nil {
		fs.Remove(tmpPath)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	res := &Result{Path: a.w.ArtifactPath(a.name, a.format)}

	previous, err := afero.ReadFile(fs, res.Path)
	switch {
	case err == nil:
		res.Backup, err = a.w.backupPath(a.name, a.format)
		if err != nil {
			fs.Remove(tmpPath)
			return nil, err
		}
		if err := fs.Rename(res.Path, res.Backup); err != nil {
			fs.Remove(tmpPath)
			return nil, fmt.Errorf("failed to back up %s: %w", res.Path, err)
		}
	case !os.IsNotExist(err):
		fs.Remove(tmpPath)
		return nil, err
	}

	if err := fs.Rename(tmpPath, res.Path); err != nil {
		fs.Remove(tmpPath)
		return nil, fmt.Errorf("failed to rename file: %w", err)
	}

	current, err := afero.ReadFile(fs, res.Path)
	if err != nil {
		return nil, err
	}
	if res.Backup != "" {
		res.Added, res.Removed = lineStats(string(previous), string(current))
	}

	res.Shared, err = a.w.publish(a.name, a.format, current)
	if err != nil {
		return nil, err
	}

	logging.Info().
		Str("workflow", a.name).
		Str("path", res.Path).
		Str("backup", res.Backup).
		Int("added", res.Added).
		Int("removed", res.Removed).
		Msg("Output written")
	return res, nil
}

// Abort discards the artifact.
func (a *Artifact) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	defer a.lock.Unlock()

	a.tmp.Close()
	return a.w.fs.Remove(a.tmp.Name())
}

// backupPath picks an unused output-<timestamp>.<fmt> name.
func (w *Writer) backupPath(name, format string) (string, error) {
	dir := w.project.WorkflowDir(name)
	stamp := w.now().Format(BackupTimeFormat)
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.%s", artifactBase, stamp, format))
	for i := 1; ; i++ {
		if _, err := w.fs.Stat(path); os.IsNotExist(err) {
			return path, nil
		} else if err != nil {
			return "", err
		}
		path = filepath.Join(dir, fmt.Sprintf("%s-%s-%d.%s", artifactBase, stamp, i, format))
	}
}

// publish replaces the shared copy of a workflow's output. Copies in other
// formats are removed so dependents always see the latest run.
func (w *Writer) publish(name, format string, data []byte) (string, error) {
	dir := w.project.OutputDir()
	if err := w.fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	stale, err := w.project.SharedOutputs(w.fs, name)
	if err != nil {
		return "", err
	}
	shared := w.SharedPath(name, format)
	for _, s := range stale {
		if s != shared {
			w.fs.Remove(s)
		}
	}

	tmpPath := shared + ".tmp"
	if err := afero.WriteFile(w.fs, tmpPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := w.fs.Rename(tmpPath, shared); err != nil {
		w.fs.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename file: %w", err)
	}
	return shared, nil
}
