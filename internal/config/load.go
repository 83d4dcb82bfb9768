package config

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/opencode-ai/workflow/internal/logging"
	"github.com/opencode-ai/workflow/internal/project"
)

// ErrConfigConflict is returned when a config path exists but is not a file.
var ErrConfigConflict = project.ErrConfigConflict

// LoadOptions selects the tiers to load.
type LoadOptions struct {
	// GlobalFile is the global-tier config file. Optional.
	GlobalFile string
	// Project is the discovered project. Nil for runs outside a project,
	// which then only see builtin, global and cli tiers.
	Project *project.Project
	// Workflow names the workflow tier. Empty skips it.
	Workflow string
	// CLI holds explicitly passed flag values.
	CLI map[Key]Value
	// WorkDir anchors the cli tier.
	WorkDir string
}

// LoadTiers reads every tier in cascade order. Missing files produce empty
// tiers; files that cannot be parsed abort the load.
func LoadTiers(fs afero.Fs, opts LoadOptions) ([]Tier, error) {
	tiers := []Tier{Defaults()}

	root := ""
	if opts.Project != nil {
		root = opts.Project.Root
	}

	if opts.GlobalFile != "" {
		t, err := readTier(fs, TierGlobal, opts.GlobalFile, root)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}

	if opts.Project != nil {
		for _, anc := range opts.Project.Ancestors {
			t, err := readTier(fs, TierAncestor, project.ConfigPathFor(anc), anc)
			if err != nil {
				return nil, err
			}
			tiers = append(tiers, t)
		}

		t, err := readTier(fs, TierProject, opts.Project.ConfigPath(), root)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)

		if opts.Workflow != "" {
			t, err := readTier(fs, TierWorkflow, opts.Project.WorkflowConfigPath(opts.Workflow), root)
			if err != nil {
				return nil, err
			}
			tiers = append(tiers, t)
		}
	}

	tiers = append(tiers, CLITier(opts.CLI, opts.WorkDir))
	return tiers, nil
}

// Load reads the tiers and resolves them.
func Load(fs afero.Fs, opts LoadOptions) (*Resolved, error) {
	tiers, err := LoadTiers(fs, opts)
	if err != nil {
		return nil, err
	}
	return Resolve(tiers), nil
}

func readTier(fs afero.Fs, kind TierKind, path, root string) (Tier, error) {
	t := NewTier(kind, path, root)

	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, err
	}
	if info.IsDir() {
		return t, fmt.Errorf("%w: %s is a directory", ErrConfigConflict, path)
	}

	f, err := fs.Open(path)
	if err != nil {
		return t, err
	}
	defer f.Close()

	values, err := Parse(f, path)
	if err != nil {
		return t, err
	}
	t.Values = values

	logging.Debug().
		Str("tier", string(kind)).
		Str("source", path).
		Int("keys", len(values)).
		Msg("Loaded config tier")
	return t, nil
}
