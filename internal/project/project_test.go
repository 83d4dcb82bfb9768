package project

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover_NestedProjects(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home/u/.workflow", 0755))
	require.NoError(t, fs.MkdirAll("/home/u/outer/.workflow", 0755))
	require.NoError(t, fs.MkdirAll("/home/u/outer/inner/.workflow", 0755))
	require.NoError(t, fs.MkdirAll("/home/u/outer/inner/src/pkg", 0755))

	p, err := Discover(fs, "/home/u/outer/inner/src/pkg", "/home/u")
	require.NoError(t, err)

	assert.Equal(t, "/home/u/outer/inner", p.Root)
	// outermost first so nearer ancestors override farther ones
	assert.Equal(t, []string{"/home/u", "/home/u/outer"}, p.Ancestors)
}

func TestDiscover_StopsAtBoundary(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/.workflow", 0755))
	require.NoError(t, fs.MkdirAll("/home/u/proj/.workflow", 0755))

	p, err := Discover(fs, "/home/u/proj", "/home/u")
	require.NoError(t, err)
	assert.Equal(t, "/home/u/proj", p.Root)
	assert.Empty(t, p.Ancestors)
}

func TestDiscover_NotFound(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home/u/proj", 0755))

	_, err := Discover(fs, "/home/u/proj", "/home/u")
	assert.True(t, errors.Is(err, ErrProjectNotFound), "got %v", err)
}

func TestDiscover_MarkerIsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/home/u/proj/.workflow", []byte("x"), 0644))

	_, err := Discover(fs, "/home/u/proj", "/home/u")
	assert.True(t, errors.Is(err, ErrConfigConflict), "got %v", err)
}

func TestInitAndNewWorkflow(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, err := Init(fs, "/work")
	require.NoError(t, err)

	exists, _ := afero.DirExists(fs, p.OutputDir())
	assert.True(t, exists)
	cfg, err := afero.ReadFile(fs, p.ConfigPath())
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "SYSTEM_PROMPTS=()")

	// Init is idempotent and keeps edits
	require.NoError(t, afero.WriteFile(fs, p.ConfigPath(), []byte("MODEL=custom\n"), 0644))
	_, err = Init(fs, "/work")
	require.NoError(t, err)
	cfg, _ = afero.ReadFile(fs, p.ConfigPath())
	assert.Equal(t, "MODEL=custom\n", string(cfg))

	require.NoError(t, p.NewWorkflow(fs, "summary"))
	assert.True(t, errors.Is(p.NewWorkflow(fs, "summary"), ErrWorkflowExists))
	require.NoError(t, p.RequireWorkflow(fs, "summary"))
	assert.True(t, errors.Is(p.RequireWorkflow(fs, "missing"), ErrWorkflowNotFound))

	task, err := afero.ReadFile(fs, p.TaskPath("summary"))
	require.NoError(t, err)
	assert.NotEmpty(t, task)

	names, err := p.Workflows(fs)
	require.NoError(t, err)
	assert.Equal(t, []string{"summary"}, names)
}

func TestValidateName(t *testing.T) {
	for _, bad := range []string{"", "a/b", ".hidden", "output", "config", "a*", "x?", "[ab]"} {
		assert.True(t, errors.Is(ValidateName(bad), ErrInvalidName), "expected %q to be rejected", bad)
	}
	assert.NoError(t, ValidateName("analysis-01"))
	assert.NoError(t, ValidateName("notes.v2"))
}

func TestSharedOutputs_ExactName(t *testing.T) {
	fs := afero.NewMemMapFs()
	p, err := Init(fs, "/work")
	require.NoError(t, err)

	for _, f := range []string{"notes.v2.md", "notes.txt", "notes.md.tmp", "notesx.md"} {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(p.OutputDir(), f), []byte("x"), 0644))
	}

	paths, err := p.SharedOutputs(fs, "notes")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(p.OutputDir(), "notes.txt")}, paths)

	paths, err = p.SharedOutputs(fs, "notes.v2")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(p.OutputDir(), "notes.v2.md")}, paths)

	paths, err = p.SharedOutputs(fs, "missing")
	require.NoError(t, err)
	assert.Empty(t, paths)
}
