// Package pipeline ties configuration, content aggregation, cache planning
// and dispatch together for one run.
//
// Prepare does all local work and fails before anything is sent. Run performs
// the single network call and writes the artifact.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/opencode-ai/workflow/internal/config"
	"github.com/opencode-ai/workflow/internal/dispatch"
	"github.com/opencode-ai/workflow/internal/logging"
	"github.com/opencode-ai/workflow/internal/manifest"
	"github.com/opencode-ai/workflow/internal/output"
	"github.com/opencode-ai/workflow/internal/project"
	"github.com/opencode-ai/workflow/internal/request"
	"github.com/opencode-ai/workflow/internal/tokens"
	"github.com/opencode-ai/workflow/pkg/types"
)

// Options describe one run. Everything environment-dependent is resolved by
// the caller.
type Options struct {
	FS afero.Fs
	// Project is nil for one-off tasks outside a project.
	Project *project.Project
	// Workflow is empty for one-off tasks.
	Workflow     string
	GlobalConfig string
	PromptDir    string
	WorkDir      string
	CLI          map[config.Key]config.Value
	Sources      manifest.Sources
	// Task overrides the workflow's task file.
	Task   string
	Stream bool
	Now    time.Time
}

// Prepared is a fully assembled run, ready to send.
type Prepared struct {
	Workflow string
	Format   string
	Config   *config.Resolved
	Settings request.Settings
	Manifest *manifest.Manifest
	Request  *types.Request
	Estimate tokens.Estimate
}

// Prepare resolves configuration, aggregates content, plans cache
// breakpoints and assembles the request.
func Prepare(ctx context.Context, opts Options) (*Prepared, error) {
	if opts.Workflow != "" {
		if opts.Project == nil {
			return nil, project.ErrProjectNotFound
		}
		if err := opts.Project.RequireWorkflow(opts.FS, opts.Workflow); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(opts.FS, config.LoadOptions{
		GlobalFile: opts.GlobalConfig,
		Project:    opts.Project,
		Workflow:   opts.Workflow,
		CLI:        opts.CLI,
		WorkDir:    opts.WorkDir,
	})
	if err != nil {
		return nil, err
	}

	settings, err := request.SettingsFrom(cfg)
	if err != nil {
		return nil, err
	}
	settings.Stream = opts.Stream

	task, err := loadTask(opts)
	if err != nil {
		return nil, err
	}

	m, err := manifest.New(opts.FS).Aggregate(ctx, &manifest.Request{
		Config:    cfg,
		Project:   opts.Project,
		Workflow:  opts.Workflow,
		CLI:       opts.Sources,
		WorkDir:   opts.WorkDir,
		PromptDir: opts.PromptDir,
		Task:      task,
		Now:       opts.Now,
	})
	if err != nil {
		return nil, err
	}

	req, err := request.Build(settings, m)
	if err != nil {
		return nil, err
	}

	p := &Prepared{
		Workflow: opts.Workflow,
		Format:   cfg.OutputFormat(),
		Config:   cfg,
		Settings: settings,
		Manifest: m,
		Request:  req,
		Estimate: tokens.Heuristic(m.System, m.User),
	}

	logging.Info().
		Str("workflow", opts.Workflow).
		Str("model", settings.Model).
		Int("blocks", len(m.System)+len(m.User)).
		Int("cache_markers", req.CacheMarkers()).
		Int("estimated_tokens", p.Estimate.Total).
		Msg("Request prepared")
	return p, nil
}

func loadTask(opts Options) (string, error) {
	if strings.TrimSpace(opts.Task) != "" || opts.Workflow == "" {
		return opts.Task, nil
	}
	data, err := afero.ReadFile(opts.FS, opts.Project.TaskPath(opts.Workflow))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", manifest.ErrEmptyTask, opts.Project.TaskPath(opts.Workflow))
		}
		return "", err
	}
	return string(data), nil
}

// Executor performs the completion call.
type Executor interface {
	Complete(ctx context.Context, req *types.Request) (string, error)
	Stream(ctx context.Context, req *types.Request, sink io.Writer) error
}

// Run sends the prepared request and writes the response to stdout and, for
// workflows, to the artifact. A failed stream still commits the partial
// output and the run is reported as failed.
func Run(ctx context.Context, p *Prepared, exec Executor, w *output.Writer, stdout io.Writer) (*output.Result, error) {
	if p.Workflow == "" || w == nil {
		return nil, send(ctx, p, exec, stdout)
	}

	log := logging.With().Str("workflow", p.Workflow).Logger()

	art, err := w.Begin(p.Workflow, p.Format)
	if err != nil {
		return nil, err
	}

	err = send(ctx, p, exec, io.MultiWriter(art, stdout))
	if err != nil && !errors.Is(err, dispatch.ErrStream) {
		if abortErr := art.Abort(); abortErr != nil {
			log.Warn().Err(abortErr).Msg("Failed to discard output")
		}
		return nil, err
	}

	res, commitErr := art.Commit()
	if commitErr != nil {
		return nil, commitErr
	}
	if err != nil {
		log.Error().Err(err).Str("path", res.Path).Msg("Stream failed, partial output kept")
		return res, err
	}
	return res, nil
}

func send(ctx context.Context, p *Prepared, exec Executor, sink io.Writer) error {
	if p.Settings.Stream {
		return exec.Stream(ctx, p.Request, sink)
	}
	text, err := exec.Complete(ctx, p.Request)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(sink, text); err != nil {
		return err
	}
	if !strings.HasSuffix(text, "\n") {
		_, err = io.WriteString(sink, "\n")
	}
	return err
}
