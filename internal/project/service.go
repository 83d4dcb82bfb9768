package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const projectConfigTemplate = `# Project configuration.
# Empty values pass through to enclosing projects and the global config.

MODEL=
TEMPERATURE=
MAX_TOKENS=
OUTPUT_FORMAT=
SYSTEM_PROMPTS=()

CONTEXT_PATTERN=
CONTEXT_FILES=()
INPUT_PATTERN=
INPUT_FILES=()
`

const workflowConfigTemplate = `# Workflow configuration.
# Empty values pass through to the project config.

MODEL=
TEMPERATURE=
MAX_TOKENS=
OUTPUT_FORMAT=
SYSTEM_PROMPTS=()

DEPENDS_ON=()

CONTEXT_PATTERN=
CONTEXT_FILES=()
INPUT_PATTERN=
INPUT_FILES=()
`

const taskTemplate = `Describe the task for this workflow here.
`

// Init creates the marker layout in dir. Existing files are left untouched,
// so running Init twice is harmless.
func Init(fs afero.Fs, dir string) (*Project, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	p := &Project{Root: root}

	if info, err := fs.Stat(p.MarkerPath()); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrConfigConflict, p.MarkerPath())
	}
	if err := fs.MkdirAll(p.OutputDir(), 0755); err != nil {
		return nil, err
	}
	if err := writeIfMissing(fs, p.ConfigPath(), projectConfigTemplate); err != nil {
		return nil, err
	}
	if err := writeIfMissing(fs, p.DescriptionPath(), ""); err != nil {
		return nil, err
	}
	return p, nil
}

// NewWorkflow scaffolds a workflow directory with a config and a task file.
func (p *Project) NewWorkflow(fs afero.Fs, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	dir := p.WorkflowDir(name)
	if _, err := fs.Stat(dir); err == nil {
		return fmt.Errorf("%w: %s", ErrWorkflowExists, name)
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := fs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := afero.WriteFile(fs, p.WorkflowConfigPath(name), []byte(workflowConfigTemplate), 0644); err != nil {
		return err
	}
	return afero.WriteFile(fs, p.TaskPath(name), []byte(taskTemplate), 0644)
}

func writeIfMissing(fs afero.Fs, path, content string) error {
	info, err := fs.Stat(path)
	if err == nil {
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrConfigConflict, path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return afero.WriteFile(fs, path, []byte(content), 0644)
}
