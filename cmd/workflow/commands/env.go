package commands

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/shell"

	"github.com/opencode-ai/workflow/internal/config"
	"github.com/opencode-ai/workflow/internal/logging"
	"github.com/opencode-ai/workflow/internal/manifest"
	"github.com/opencode-ai/workflow/internal/project"
)

// environment is everything the commands read from the process, resolved once.
type environment struct {
	fs      afero.Fs
	workDir string
	home    string
	paths   *config.Paths
	// project is nil when the working directory is outside any project.
	project *project.Project
}

// loadEnv resolves the working directory, config paths and, if present, the
// enclosing project.
func loadEnv(requireProject bool) (*environment, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	home, _ := os.UserHomeDir()

	env := &environment{
		fs:      afero.NewOsFs(),
		workDir: workDir,
		home:    home,
		paths:   config.GetPaths(),
	}
	if err := env.paths.EnsurePaths(env.fs); err != nil {
		logging.Warn().Err(err).Str("dir", env.paths.Config).Msg("Failed to prepare config directory")
	}

	env.project, err = project.Discover(env.fs, workDir, home)
	if err != nil {
		if errors.Is(err, project.ErrProjectNotFound) && !requireProject {
			env.project = nil
			return env, nil
		}
		return nil, err
	}
	return env, nil
}

// requireWorkflow checks that name exists, suggesting a close match if not.
func (e *environment) requireWorkflow(name string) error {
	err := e.project.RequireWorkflow(e.fs, name)
	if !errors.Is(err, project.ErrWorkflowNotFound) {
		return err
	}
	names, _ := e.project.Workflows(e.fs)
	if s := manifest.Suggest(name, names); s != "" {
		return withHint(err, "did you mean %q? otherwise run 'workflow new %s'", s, name)
	}
	return withHint(err, "run 'workflow new %s' to create it", name)
}

// apiKey returns ANTHROPIC_API_KEY from the environment or the dotenv file.
func (e *environment) apiKey() (string, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}
	values, err := config.ReadEnvFile(e.fs, e.paths.EnvFile())
	if err != nil {
		return "", err
	}
	if key := values["ANTHROPIC_API_KEY"]; key != "" {
		return key, nil
	}
	return "", withHint(errors.New("ANTHROPIC_API_KEY is not set"),
		"export ANTHROPIC_API_KEY or add it to %s", e.paths.EnvFile())
}

// editor returns the user's editor command.
func editor() string {
	for _, v := range []string{"VISUAL", "EDITOR"} {
		if ed := os.Getenv(v); ed != "" {
			return ed
		}
	}
	return "vi"
}

// editorArgs splits an editor setting such as "code -w" into argv and
// appends files.
func editorArgs(editor string, files ...string) ([]string, error) {
	fields, err := shell.Fields(editor, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid editor %q: %w", editor, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("invalid editor %q", editor)
	}
	return append(fields, files...), nil
}

// openFiles opens files in the user's editor and waits for it to exit.
func openFiles(files ...string) error {
	args, err := editorArgs(editor(), files...)
	if err != nil {
		return err
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor failed: %w", err)
	}
	return nil
}

// openerCommand returns the platform command that opens a file with its
// default application.
func openerCommand(path string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("cmd", "/c", "start", "", path)
	default:
		return exec.Command("xdg-open", path)
	}
}
