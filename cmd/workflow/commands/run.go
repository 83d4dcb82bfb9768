package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/workflow/internal/dispatch"
	"github.com/opencode-ai/workflow/internal/output"
	"github.com/opencode-ai/workflow/internal/pipeline"
	"github.com/opencode-ai/workflow/internal/request"
	"github.com/opencode-ai/workflow/internal/tokens"
)

var runFlags requestFlags

var runCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a workflow",
	Long: `Run a workflow: resolve its configuration, gather context and input
documents, send the request and save the response to
.workflow/<name>/output.<format>. An existing output is kept as a
timestamped backup.

Examples:
  workflow run summary
  workflow run summary --stream
  workflow run summary --context-file notes.md --model claude-opus-4-1
  workflow run report --depends-on summary,facts
  workflow run summary --dry-run > request.json`,
	Args: exactArgs(1),
	RunE: runWorkflow,
}

func init() {
	runFlags.register(runCmd, true)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	name := args[0]

	env, err := loadEnv(true)
	if err != nil {
		return err
	}
	if err := env.requireWorkflow(name); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := pipeline.Options{
		FS:           env.fs,
		Project:      env.project,
		Workflow:     name,
		GlobalConfig: env.paths.ConfigFile(),
		PromptDir:    env.paths.PromptDir(),
		WorkDir:      env.workDir,
		CLI:          runFlags.cliValues(cmd),
		Sources:      runFlags.sources(),
		Stream:       runFlags.stream,
		Now:          time.Now(),
	}
	writer := output.NewWriter(env.fs, env.project, time.Now)
	return execute(ctx, cmd, env, opts, &runFlags, writer)
}

// execute prepares the request and then either inspects it or sends it.
func execute(ctx context.Context, cmd *cobra.Command, env *environment, opts pipeline.Options, f *requestFlags, writer *output.Writer) error {
	prepared, err := pipeline.Prepare(ctx, opts)
	if err != nil {
		return err
	}
	stdout := cmd.OutOrStdout()

	if f.dryRun {
		return request.Encode(stdout, prepared.Request)
	}

	if f.countTokens {
		var counter tokens.Counter
		if key, err := env.apiKey(); err == nil {
			counter = dispatch.NewClient(key)
		}
		est := tokens.Count(ctx, counter, prepared.Request, prepared.Manifest.System, prepared.Manifest.User)
		printEstimate(stdout, est)
		return nil
	}

	key, err := env.apiKey()
	if err != nil {
		return err
	}
	res, err := pipeline.Run(ctx, prepared, dispatch.NewClient(key), writer, stdout)
	if res != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), color.New(color.FgHiBlack).Sprintf("saved %s", res.Path))
		if res.Backup != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), color.New(color.FgHiBlack).Sprintf("previous output kept as %s (+%d -%d lines)", res.Backup, res.Added, res.Removed))
		}
	}
	return err
}

func printEstimate(w io.Writer, est tokens.Estimate) {
	fmt.Fprintf(w, "system:  %d\n", est.System)
	fmt.Fprintf(w, "context: %d\n", est.Context)
	fmt.Fprintf(w, "task:    %d\n", est.Task)
	if est.Images > 0 {
		fmt.Fprintf(w, "images:  %d\n", est.Images)
	}
	if est.Unestimated > 0 {
		fmt.Fprintf(w, "pdfs:    %d (not estimated)\n", est.Unestimated)
	}
	kind := "estimated"
	if est.Exact {
		kind = "exact"
	}
	fmt.Fprintf(w, "total:   %d (%s)\n", est.Total, kind)
}
