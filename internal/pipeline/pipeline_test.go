package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/workflow/internal/config"
	"github.com/opencode-ai/workflow/internal/dispatch"
	"github.com/opencode-ai/workflow/internal/manifest"
	"github.com/opencode-ai/workflow/internal/output"
	"github.com/opencode-ai/workflow/internal/project"
	"github.com/opencode-ai/workflow/pkg/types"
)

type fakeExecutor struct {
	calls  int
	text   string
	chunks []string
	fail   bool
}

func (f *fakeExecutor) Complete(ctx context.Context, req *types.Request) (string, error) {
	f.calls++
	return f.text, nil
}

func (f *fakeExecutor) Stream(ctx context.Context, req *types.Request, sink io.Writer) error {
	f.calls++
	for _, c := range f.chunks {
		if _, err := io.WriteString(sink, c); err != nil {
			return err
		}
	}
	if f.fail {
		return fmt.Errorf("%w: overloaded", dispatch.ErrStream)
	}
	return nil
}

type env struct {
	fs      afero.Fs
	project *project.Project
	writer  *output.Writer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	fs := afero.NewMemMapFs()
	p, err := project.Init(fs, "/p")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/prompts/base.txt", []byte("You are helpful."), 0644))

	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	return &env{fs: fs, project: p, writer: output.NewWriter(fs, p, func() time.Time { return now })}
}

func (e *env) workflow(t *testing.T, name, cfg, task string) {
	t.Helper()
	require.NoError(t, e.project.NewWorkflow(e.fs, name))
	require.NoError(t, afero.WriteFile(e.fs, e.project.WorkflowConfigPath(name), []byte(cfg), 0644))
	require.NoError(t, afero.WriteFile(e.fs, e.project.TaskPath(name), []byte(task), 0644))
}

func (e *env) options(name string) Options {
	return Options{
		FS:        e.fs,
		Project:   e.project,
		Workflow:  name,
		PromptDir: "/prompts",
		WorkDir:   "/p",
		Now:       time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
	}
}

func TestPrepare_MixedContent(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, afero.WriteFile(e.fs, "/p/context.txt", []byte("background"), 0644))
	require.NoError(t, afero.WriteFile(e.fs, "/p/input.txt", []byte("analyze me"), 0644))
	e.workflow(t, "review", "CONTEXT_FILES=(context.txt)\nINPUT_FILES=(input.txt)\n", "Review the input.")

	p, err := Prepare(context.Background(), e.options("review"))
	require.NoError(t, err)

	content := p.Request.Messages[0].Content
	require.Len(t, content, 3)
	assert.Nil(t, content[0].CacheControl)
	assert.NotNil(t, content[1].CacheControl)
	assert.Nil(t, content[2].CacheControl)
	assert.Equal(t, "Review the input.", content[2].Text)
	assert.LessOrEqual(t, p.Request.CacheMarkers(), 4)
	assert.Equal(t, "md", p.Format)
	assert.Positive(t, p.Estimate.Total)
}

func TestPrepare_CLIOverrides(t *testing.T) {
	e := newEnv(t)
	e.workflow(t, "draft", "MODEL=claude-opus-4-1\n", "Draft it.")

	opts := e.options("draft")
	opts.CLI = map[config.Key]config.Value{
		config.KeyModel:     config.Scalar(""),
		config.KeyMaxTokens: config.Scalar("512"),
	}
	p, err := Prepare(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "claude-opus-4-1", p.Request.Model)
	assert.Equal(t, 512, p.Request.MaxTokens)
}

func TestPrepare_UnknownWorkflow(t *testing.T) {
	e := newEnv(t)
	_, err := Prepare(context.Background(), e.options("missing"))
	assert.True(t, errors.Is(err, project.ErrWorkflowNotFound), "got %v", err)
}

func TestRun_FreshInstallUsesBuiltinDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	paths := &config.Paths{Config: "/home/u/.config/workflow"}
	require.NoError(t, paths.EnsurePaths(fs))

	p, err := project.Init(fs, "/home/u/proj")
	require.NoError(t, err)
	require.NoError(t, p.NewWorkflow(fs, "first"))

	prepared, err := Prepare(context.Background(), Options{
		FS:           fs,
		Project:      p,
		Workflow:     "first",
		GlobalConfig: paths.ConfigFile(),
		PromptDir:    paths.PromptDir(),
		WorkDir:      "/home/u/proj",
	})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", prepared.Request.Model)
	require.NotEmpty(t, prepared.Request.System)
	assert.NotEmpty(t, prepared.Request.System[0].Text)
	assert.NotNil(t, prepared.Request.System[0].CacheControl)

	w := output.NewWriter(fs, p, nil)
	res, err := Run(context.Background(), prepared, &fakeExecutor{text: "done"}, w, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "/home/u/proj/.workflow/first/output.md", res.Path)
}

func TestRun_DependencyMissingAbortsBeforeNetwork(t *testing.T) {
	e := newEnv(t)
	e.workflow(t, "summary", "DEPENDS_ON=(collect)\n", "Summarize.")

	exec := &fakeExecutor{text: "never"}
	p, err := Prepare(context.Background(), e.options("summary"))
	if err == nil {
		_, err = Run(context.Background(), p, exec, e.writer, io.Discard)
	}

	require.Error(t, err)
	assert.True(t, errors.Is(err, manifest.ErrDependencyOutputMissing))
	assert.Zero(t, exec.calls)

	outputs, _ := afero.Glob(e.fs, "/p/.workflow/summary/output*")
	assert.Empty(t, outputs)
	shared, _ := afero.Glob(e.fs, "/p/.workflow/output/*")
	assert.Empty(t, shared)
}

func TestRun_DependencyChain(t *testing.T) {
	e := newEnv(t)
	e.workflow(t, "collect", "", "Collect facts.")
	e.workflow(t, "summary", "DEPENDS_ON=(collect)\n", "Summarize.")

	p, err := Prepare(context.Background(), e.options("collect"))
	require.NoError(t, err)
	_, err = Run(context.Background(), p, &fakeExecutor{text: "fact one"}, e.writer, io.Discard)
	require.NoError(t, err)

	p, err = Prepare(context.Background(), e.options("summary"))
	require.NoError(t, err)
	first := p.Manifest.User[0]
	assert.Equal(t, types.GroupDependency, first.Group)
	assert.Contains(t, first.Text, "fact one")
}

func TestRun_SecondRunKeepsFirstArtifact(t *testing.T) {
	e := newEnv(t)
	e.workflow(t, "draft", "", "Draft.")

	for _, text := range []string{"first result", "second result"} {
		p, err := Prepare(context.Background(), e.options("draft"))
		require.NoError(t, err)
		_, err = Run(context.Background(), p, &fakeExecutor{text: text}, e.writer, io.Discard)
		require.NoError(t, err)
	}

	backup, err := afero.ReadFile(e.fs, "/p/.workflow/draft/output-20260203040506.md")
	require.NoError(t, err)
	assert.Equal(t, "first result\n", string(backup))

	current, err := afero.ReadFile(e.fs, "/p/.workflow/draft/output.md")
	require.NoError(t, err)
	assert.Equal(t, "second result\n", string(current))
}

func TestRun_StreamFailureKeepsPartialOutput(t *testing.T) {
	e := newEnv(t)
	e.workflow(t, "draft", "", "Draft.")

	opts := e.options("draft")
	opts.Stream = true
	p, err := Prepare(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, p.Request.Stream)

	var stdout bytes.Buffer
	res, err := Run(context.Background(), p, &fakeExecutor{chunks: []string{"par", "tial"}, fail: true}, e.writer, &stdout)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dispatch.ErrStream))
	require.NotNil(t, res)

	data, readErr := afero.ReadFile(e.fs, res.Path)
	require.NoError(t, readErr)
	assert.Equal(t, "partial", string(data))
	assert.Equal(t, "partial", stdout.String())
}

func TestRun_OneOffTask(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/prompts/base.txt", []byte("base"), 0644))

	p, err := Prepare(context.Background(), Options{
		FS:        fs,
		PromptDir: "/prompts",
		WorkDir:   "/tmp",
		Task:      "What is 2+2?",
	})
	require.NoError(t, err)
	require.Len(t, p.Manifest.User, 1)
	assert.Equal(t, 1, p.Request.CacheMarkers())

	var stdout bytes.Buffer
	res, err := Run(context.Background(), p, &fakeExecutor{text: "4"}, nil, &stdout)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, "4\n", stdout.String())
}
