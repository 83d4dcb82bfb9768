package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/workflow/internal/manifest"
	"github.com/opencode-ai/workflow/internal/pipeline"
)

var (
	taskFlags  requestFlags
	taskInline string
)

// ErrTaskNotFound is returned for an unknown named task.
var ErrTaskNotFound = errors.New("task not found")

var taskCmd = &cobra.Command{
	Use:   "task [name]",
	Short: "Run a one-off task",
	Long: `Run a one-off task without a workflow. The task is either given inline
or read from the task library in ~/.config/workflow/tasks/<name>.txt.
Project configuration applies when run inside a project. The response is
streamed to stdout and not saved.

Examples:
  workflow task --inline "Summarize these notes" --context-file notes.md
  workflow task proofread --input-file draft.md`,
	Args: maxArgs(1),
	RunE: runTask,
}

func init() {
	taskFlags.register(taskCmd, false)
	taskCmd.Flags().StringVarP(&taskInline, "inline", "i", "", "Task text")
}

func runTask(cmd *cobra.Command, args []string) error {
	if (len(args) == 0) == (taskInline == "") {
		return usageErrorf("give either a task name or --inline text")
	}

	env, err := loadEnv(false)
	if err != nil {
		return err
	}

	text := taskInline
	if len(args) == 1 {
		text, err = readNamedTask(env, args[0])
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stream := taskFlags.stream
	if !cmd.Flags().Changed("stream") {
		stream = true
	}

	opts := pipeline.Options{
		FS:           env.fs,
		Project:      env.project,
		GlobalConfig: env.paths.ConfigFile(),
		PromptDir:    env.paths.PromptDir(),
		WorkDir:      env.workDir,
		CLI:          taskFlags.cliValues(cmd),
		Sources:      taskFlags.sources(),
		Task:         text,
		Stream:       stream,
		Now:          time.Now(),
	}
	return execute(ctx, cmd, env, opts, &taskFlags, nil)
}

func readNamedTask(env *environment, name string) (string, error) {
	path := filepath.Join(env.paths.TaskDir(), name+".txt")
	data, err := afero.ReadFile(env.fs, path)
	if err == nil {
		return string(data), nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	err = fmt.Errorf("%w: %s", ErrTaskNotFound, path)
	names := taskNames(env)
	switch s := manifest.Suggest(name, names); {
	case s != "":
		return "", withHint(err, "did you mean %q?", s)
	case len(names) > 0:
		return "", withHint(err, "available tasks: %s", strings.Join(names, ", "))
	default:
		return "", withHint(err, "add task files to %s", env.paths.TaskDir())
	}
}

func taskNames(env *environment) []string {
	entries, err := afero.ReadDir(env.fs, env.paths.TaskDir())
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
		}
	}
	sort.Strings(names)
	return names
}
