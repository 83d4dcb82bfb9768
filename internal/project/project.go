// Package project provides project discovery and the on-disk workflow layout.
//
// A project is any directory containing a .workflow marker directory.
// Projects nest: walking upward from the working directory, every marker
// found before the safety boundary is collected. The innermost one is the
// project, the others are its ancestors.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// MarkerDir is the directory that marks a project root.
const MarkerDir = ".workflow"

// Reserved entries under the marker directory that are not workflows.
const (
	outputDirName   = "output"
	configFileName  = "config"
	descriptionName = "project.txt"
	taskFileName    = "task.txt"
)

var (
	// ErrProjectNotFound is returned when no marker exists between the
	// start directory and the safety boundary.
	ErrProjectNotFound = errors.New("project not found")
	// ErrConfigConflict is returned when a layout path exists with the wrong type.
	ErrConfigConflict = errors.New("config path conflict")
	// ErrWorkflowNotFound is returned for an unknown workflow name.
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrWorkflowExists is returned when creating a workflow that already exists.
	ErrWorkflowExists = errors.New("workflow already exists")
	// ErrInvalidName is returned for names that cannot be used as a workflow.
	ErrInvalidName = errors.New("invalid workflow name")
)

// Project is a discovered project and its enclosing ancestor projects.
type Project struct {
	// Root is the innermost directory containing a marker.
	Root string
	// Ancestors are enclosing project roots, outermost first.
	Ancestors []string
}

// Discover walks upward from start looking for marker directories. The walk
// stops after examining boundary (usually the user's home) or at the
// filesystem root, whichever comes first.
func Discover(fs afero.Fs, start, boundary string) (*Project, error) {
	current, err := filepath.Abs(start)
	if err != nil {
		return nil, err
	}
	if boundary != "" {
		if boundary, err = filepath.Abs(boundary); err != nil {
			return nil, err
		}
	}

	// innermost first
	var found []string
	for {
		marker := filepath.Join(current, MarkerDir)
		info, err := fs.Stat(marker)
		switch {
		case err == nil && info.IsDir():
			found = append(found, current)
		case err == nil:
			return nil, fmt.Errorf("%w: %s is not a directory", ErrConfigConflict, marker)
		case !os.IsNotExist(err):
			return nil, err
		}

		if current == boundary {
			break
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("%w: no %s directory above %s", ErrProjectNotFound, MarkerDir, start)
	}

	p := &Project{Root: found[0]}
	for i := len(found) - 1; i >= 1; i-- {
		p.Ancestors = append(p.Ancestors, found[i])
	}
	return p, nil
}

// MarkerPath returns the project's marker directory.
func (p *Project) MarkerPath() string {
	return filepath.Join(p.Root, MarkerDir)
}

// ConfigPath returns the project-tier config file.
func (p *Project) ConfigPath() string {
	return ConfigPathFor(p.Root)
}

// ConfigPathFor returns the config file for any project root, including ancestors.
func ConfigPathFor(root string) string {
	return filepath.Join(root, MarkerDir, configFileName)
}

// DescriptionPath returns the project description file.
func (p *Project) DescriptionPath() string {
	return filepath.Join(p.MarkerPath(), descriptionName)
}

// OutputDir returns the shared directory holding the latest output per workflow.
func (p *Project) OutputDir() string {
	return filepath.Join(p.MarkerPath(), outputDirName)
}

// WorkflowDir returns the directory of a workflow.
func (p *Project) WorkflowDir(name string) string {
	return filepath.Join(p.MarkerPath(), name)
}

// WorkflowConfigPath returns the workflow-tier config file.
func (p *Project) WorkflowConfigPath(name string) string {
	return filepath.Join(p.WorkflowDir(name), configFileName)
}

// SharedOutputs returns the files in OutputDir published by the workflow
// name, one per format. A file belongs to name only when its base without the
// final extension equals name, so "notes" never claims "notes.v2.md". Temp
// files are skipped.
func (p *Project) SharedOutputs(fs afero.Fs, name string) ([]string, error) {
	entries, err := afero.ReadDir(fs, p.OutputDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		base := e.Name()
		ext := filepath.Ext(base)
		if e.IsDir() || ext == "" || ext == ".tmp" {
			continue
		}
		if strings.TrimSuffix(base, ext) == name {
			paths = append(paths, filepath.Join(p.OutputDir(), base))
		}
	}
	return paths, nil
}

// TaskPath returns the task file of a workflow.
func (p *Project) TaskPath(name string) string {
	return filepath.Join(p.WorkflowDir(name), taskFileName)
}

// ValidateName checks that name can be used as a workflow directory.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, name)
	case strings.ContainsAny(name, "*?[]{}"):
		return fmt.Errorf("%w: %q contains a pattern character", ErrInvalidName, name)
	case name == outputDirName || name == configFileName || name == descriptionName:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return nil
}

// Workflows lists workflow names in lexical order.
func (p *Project) Workflows(fs afero.Fs) ([]string, error) {
	entries, err := afero.ReadDir(fs, p.MarkerPath())
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || ValidateName(e.Name()) != nil {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// RequireWorkflow returns ErrWorkflowNotFound unless the workflow directory exists.
func (p *Project) RequireWorkflow(fs afero.Fs, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	info, err := fs.Stat(p.WorkflowDir(name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrConfigConflict, p.WorkflowDir(name))
	}
	return nil
}
