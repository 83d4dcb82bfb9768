package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/workflow/internal/cache"
	"github.com/opencode-ai/workflow/internal/config"
	"github.com/opencode-ai/workflow/internal/dispatch"
	"github.com/opencode-ai/workflow/internal/manifest"
	"github.com/opencode-ai/workflow/internal/output"
	"github.com/opencode-ai/workflow/internal/project"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// usageError marks invalid invocations.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// hintError attaches a remedial suggestion to an error.
type hintError struct {
	err  error
	hint string
}

func (e *hintError) Error() string { return e.err.Error() }
func (e *hintError) Unwrap() error { return e.err }

func withHint(err error, format string, args ...any) error {
	return &hintError{err: err, hint: fmt.Sprintf(format, args...)}
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("%s: accepts %d arg(s), received %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

// maxArgs is cobra.MaximumNArgs reporting a usage error.
func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return usageErrorf("%s: accepts at most %d arg(s), received %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

// report prints a diagnostic for err and returns the exit code.
func report(w io.Writer, err error) int {
	red := color.New(color.FgRed, color.Bold)
	dim := color.New(color.FgHiBlack)

	fmt.Fprintf(w, "%s %v\n", red.Sprint("error:"), err)
	if hint := hintFor(err); hint != "" {
		fmt.Fprintf(w, "%s %s\n", dim.Sprint("hint:"), hint)
	}

	var usage *usageError
	if errors.As(err, &usage) {
		fmt.Fprintf(w, "%s\n", dim.Sprint("Run 'workflow help' for usage."))
		return ExitUsage
	}
	return ExitError
}

// hintFor returns the remedial suggestion for err, if any.
func hintFor(err error) string {
	var hinted *hintError
	if errors.As(err, &hinted) {
		return hinted.hint
	}

	var dep *manifest.DependencyError
	if errors.As(err, &dep) {
		if dep.Suggestion != "" {
			return fmt.Sprintf("did you mean %q? otherwise run 'workflow run %s' first", dep.Suggestion, dep.Name)
		}
		return fmt.Sprintf("run 'workflow run %s' first", dep.Name)
	}

	switch {
	case errors.Is(err, project.ErrProjectNotFound):
		return "run 'workflow init' to create a project here"
	case errors.Is(err, project.ErrWorkflowExists):
		return "use 'workflow edit <name>' to change it"
	case errors.Is(err, manifest.ErrContextFileMissing):
		return "check CONTEXT_FILES and --context-file paths"
	case errors.Is(err, manifest.ErrInputFileMissing):
		return "check INPUT_FILES and --input-file paths"
	case errors.Is(err, manifest.ErrSystemPromptMissing):
		return fmt.Sprintf("add the prompt file under %s", config.GetPaths().PromptDir())
	case errors.Is(err, manifest.ErrEmptyTask):
		return "write the task in the workflow's task.txt or pass --inline"
	case errors.Is(err, config.ErrConfigSyntax):
		return "config files accept only KEY=value and KEY=(a b c) assignments"
	case errors.Is(err, config.ErrConfigConflict):
		return "move the conflicting path out of the way"
	case errors.Is(err, config.ErrInvalidValue):
		return "run 'workflow config' to see where the value comes from"
	case errors.Is(err, output.ErrNoOutput):
		return "run the workflow first"
	case errors.Is(err, dispatch.ErrStream):
		return "partial output was saved; rerun to try again"
	case errors.Is(err, cache.ErrCacheBudgetExceeded):
		return "this is a bug, please report it"
	}
	return ""
}
