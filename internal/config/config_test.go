package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/workflow/internal/project"
)

func tier(kind TierKind, values map[Key]Value) Tier {
	t := NewTier(kind, string(kind)+".conf", "")
	for k, v := range values {
		t.Values[k] = v
	}
	return t
}

func TestResolve_AllEmptyStaysEmpty(t *testing.T) {
	tiers := []Tier{
		tier(TierGlobal, map[Key]Value{KeyContextPattern: Scalar("")}),
		tier(TierProject, map[Key]Value{KeyContextPattern: Scalar("  ")}),
		tier(TierWorkflow, nil),
	}

	r := Resolve(tiers)
	s := r.Get(KeyContextPattern)
	assert.False(t, s.Set)
	assert.Equal(t, "", r.String(KeyContextPattern))
}

func TestResolve_SingleSupplierWinsAnywhere(t *testing.T) {
	kinds := []TierKind{TierGlobal, TierAncestor, TierProject, TierWorkflow, TierCLI}
	for pos := range kinds {
		tiers := make([]Tier, len(kinds))
		for i, k := range kinds {
			tiers[i] = tier(k, map[Key]Value{KeyModel: Scalar("")})
		}
		tiers[pos].Values[KeyModel] = Scalar("only-one")

		r := Resolve(tiers)
		assert.Equal(t, "only-one", r.String(KeyModel), "supplier at position %d", pos)
		assert.Equal(t, kinds[pos], r.Origin(KeyModel).Kind)
	}
}

func TestResolve_LatestTierWins(t *testing.T) {
	tiers := []Tier{
		Defaults(),
		tier(TierGlobal, map[Key]Value{KeyModel: Scalar("global-model"), KeyTemperature: Scalar("0.2")}),
		tier(TierProject, map[Key]Value{KeyModel: Scalar("project-model")}),
		tier(TierWorkflow, map[Key]Value{KeyModel: Scalar(""), KeyTemperature: Scalar("0.5")}),
		CLITier(map[Key]Value{KeyModel: Scalar("")}, "/work"),
	}

	r := Resolve(tiers)
	assert.Equal(t, "project-model", r.String(KeyModel))
	assert.Equal(t, TierProject, r.Origin(KeyModel).Kind)

	temp, err := r.Temperature()
	require.NoError(t, err)
	assert.Equal(t, 0.5, temp)
	assert.Equal(t, TierWorkflow, r.Origin(KeyTemperature).Kind)

	maxTokens, err := r.MaxTokens()
	require.NoError(t, err)
	assert.Equal(t, 4096, maxTokens)
	assert.Equal(t, TierBuiltin, r.Origin(KeyMaxTokens).Kind)
}

func TestResolve_ListsAreAtomic(t *testing.T) {
	tiers := []Tier{
		tier(TierGlobal, map[Key]Value{KeySystemPrompts: List("base", "research")}),
		tier(TierProject, map[Key]Value{KeySystemPrompts: List("legal")}),
		tier(TierWorkflow, map[Key]Value{KeySystemPrompts: List()}),
	}

	r := Resolve(tiers)
	assert.Equal(t, []string{"legal"}, r.List(KeySystemPrompts))
	assert.Equal(t, TierProject, r.Origin(KeySystemPrompts).Kind)
}

func TestResolve_NearestAncestorWins(t *testing.T) {
	outer := NewTier(TierAncestor, "/a/.workflow/config", "/a")
	outer.Values[KeyModel] = Scalar("outer-model")
	inner := NewTier(TierAncestor, "/a/b/.workflow/config", "/a/b")
	inner.Values[KeyModel] = Scalar("inner-model")

	r := Resolve([]Tier{Defaults(), outer, inner, NewTier(TierProject, "/a/b/c/.workflow/config", "/a/b/c")})
	assert.Equal(t, "inner-model", r.String(KeyModel))
	assert.Equal(t, "/a/b/.workflow/config", r.Origin(KeyModel).Source)
}

func TestResolve_Idempotent(t *testing.T) {
	tiers := []Tier{
		Defaults(),
		tier(TierGlobal, map[Key]Value{KeyModel: Scalar("m1"), KeyContextFiles: List("a.txt")}),
		tier(TierWorkflow, map[Key]Value{KeyDependsOn: List("upstream")}),
	}

	first := Resolve(tiers)
	second := Resolve(tiers)
	if diff := cmp.Diff(first.Settings(), second.Settings()); diff != "" {
		t.Errorf("Resolve is not idempotent (-first +second):\n%s", diff)
	}

	// mutating a result must not leak into the tiers
	items := first.List(KeyContextFiles)
	items[0] = "changed"
	assert.Equal(t, []string{"a.txt"}, Resolve(tiers).List(KeyContextFiles))
}

func TestCLITier_ExplicitEmptyDoesNotParticipate(t *testing.T) {
	cli := CLITier(map[Key]Value{
		KeyModel:         Scalar(""),
		KeySystemPrompts: List(),
		KeyMaxTokens:     Scalar("100"),
	}, "/work")

	assert.NotContains(t, cli.Values, KeyModel)
	assert.NotContains(t, cli.Values, KeySystemPrompts)
	assert.Equal(t, Scalar("100"), cli.Values[KeyMaxTokens])
}

func TestTypedAccessorsReject(t *testing.T) {
	r := Resolve([]Tier{tier(TierProject, map[Key]Value{
		KeyTemperature: Scalar("hot"),
		KeyMaxTokens:   Scalar("-3"),
	})})

	_, err := r.Temperature()
	assert.True(t, errors.Is(err, ErrInvalidValue))
	_, err = r.MaxTokens()
	assert.True(t, errors.Is(err, ErrInvalidValue))
	_, err = r.Model()
	assert.True(t, errors.Is(err, ErrInvalidValue))
	assert.Equal(t, "md", r.OutputFormat())
}

func TestParse_Assignments(t *testing.T) {
	src := `# project config
MODEL=claude-opus-4-1
TEMPERATURE="0.3"
OUTPUT_FORMAT='txt'
MAX_TOKENS=
SYSTEM_PROMPTS=(base 'deep research' "legal\"s")
CONTEXT_FILES=()
DEPENDS_ON=upstream
UNKNOWN_KEY=ignored
`
	values, err := Parse(strings.NewReader(src), "config")
	require.NoError(t, err)

	assert.Equal(t, Scalar("claude-opus-4-1"), values[KeyModel])
	assert.Equal(t, Scalar("0.3"), values[KeyTemperature])
	assert.Equal(t, Scalar("txt"), values[KeyOutputFormat])
	assert.True(t, values[KeyMaxTokens].Empty(KeyMaxTokens))
	assert.Equal(t, []string{"base", "deep research", `legal"s`}, values[KeySystemPrompts].Items)
	assert.True(t, values[KeyContextFiles].Empty(KeyContextFiles))
	assert.Equal(t, []string{"upstream"}, values[KeyDependsOn].Items)
	assert.Len(t, values, 7)
}

func TestParse_RejectsExecutableConstructs(t *testing.T) {
	cases := map[string]string{
		"command":          "rm -rf /\n",
		"substitution":     "MODEL=$(whoami)\n",
		"backticks":        "MODEL=`whoami`\n",
		"param expansion":  "MODEL=$HOME\n",
		"quoted expansion": "MODEL=\"${HOME}\"\n",
		"pipeline":         "MODEL=a | cat\n",
		"redirect":         "MODEL=a > out\n",
		"function":         "f() { MODEL=a; }\n",
		"assign plus cmd":  "MODEL=a echo hi\n",
		"list for scalar":  "MODEL=(a b)\n",
		"append":           "SYSTEM_PROMPTS+=(a)\n",
		"unterminated":     "MODEL=\"abc\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(src), "config")
			assert.True(t, errors.Is(err, ErrConfigSyntax), "got %v", err)
		})
	}
}

func TestLoadTiers_Cascade(t *testing.T) {
	fs := afero.NewMemMapFs()
	write := func(path, content string) {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	write("/cfg/workflow/config", "MODEL=global-model\nTEMPERATURE=0.1\n")
	write("/home/u/.workflow/config", "MODEL=outer-model\nCONTEXT_PATTERN=docs/*.md\n")
	write("/home/u/proj/.workflow/config", "MODEL=\nMAX_TOKENS=2000\n")
	write("/home/u/proj/.workflow/summary/config", "DEPENDS_ON=(collect)\n")

	p, err := project.Discover(fs, "/home/u/proj", "/home/u")
	require.NoError(t, err)

	tiers, err := LoadTiers(fs, LoadOptions{
		GlobalFile: "/cfg/workflow/config",
		Project:    p,
		Workflow:   "summary",
		CLI:        map[Key]Value{KeyTemperature: Scalar("0.9")},
		WorkDir:    "/home/u/proj",
	})
	require.NoError(t, err)

	var kinds []TierKind
	for _, tr := range tiers {
		kinds = append(kinds, tr.Kind)
	}
	assert.Equal(t, []TierKind{TierBuiltin, TierGlobal, TierAncestor, TierProject, TierWorkflow, TierCLI}, kinds)

	r := Resolve(tiers)
	assert.Equal(t, "outer-model", r.String(KeyModel))
	assert.Equal(t, "/home/u", r.Origin(KeyContextPattern).Root)
	assert.Equal(t, "2000", r.String(KeyMaxTokens))
	assert.Equal(t, []string{"collect"}, r.List(KeyDependsOn))
	assert.Equal(t, "0.9", r.String(KeyTemperature))
	assert.Equal(t, TierCLI, r.Origin(KeyTemperature).Kind)
}

func TestLoadTiers_ConfigIsDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/p/.workflow/config", 0755))

	p := &project.Project{Root: "/p"}
	_, err := LoadTiers(fs, LoadOptions{Project: p})
	assert.True(t, errors.Is(err, ErrConfigConflict), "got %v", err)
}

func TestReadEnvFile(t *testing.T) {
	fs := afero.NewMemMapFs()

	env, err := ReadEnvFile(fs, "/cfg/.env")
	require.NoError(t, err)
	assert.Empty(t, env)

	require.NoError(t, afero.WriteFile(fs, "/cfg/.env", []byte("ANTHROPIC_API_KEY=sk-test\n# comment\n"), 0600))
	env, err = ReadEnvFile(fs, "/cfg/.env")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", env["ANTHROPIC_API_KEY"])
}

func TestGetPathsHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	p := GetPaths()
	assert.Equal(t, "/xdg/workflow", p.Config)
	assert.Equal(t, "/xdg/workflow/config", p.ConfigFile())
	assert.Equal(t, "/xdg/workflow/prompts", p.PromptDir())
}

func TestEnsurePaths_SeedsDefaultPrompt(t *testing.T) {
	fs := afero.NewMemMapFs()
	paths := &Paths{Config: "/cfg/workflow"}
	require.NoError(t, paths.EnsurePaths(fs))

	data, err := afero.ReadFile(fs, "/cfg/workflow/prompts/"+DefaultPrompt+".txt")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(string(data)))
	assert.Equal(t, []string{DefaultPrompt}, Resolve([]Tier{Defaults()}).List(KeySystemPrompts))

	// edits survive later calls
	require.NoError(t, afero.WriteFile(fs, "/cfg/workflow/prompts/base.txt", []byte("custom"), 0644))
	require.NoError(t, paths.EnsurePaths(fs))
	data, _ = afero.ReadFile(fs, "/cfg/workflow/prompts/base.txt")
	assert.Equal(t, "custom", string(data))

	exists, _ := afero.DirExists(fs, paths.TaskDir())
	assert.True(t, exists)
}
