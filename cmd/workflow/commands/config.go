package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/opencode-ai/workflow/internal/config"
	"github.com/opencode-ai/workflow/internal/project"
)

var configYAML bool

var configCmd = &cobra.Command{
	Use:   "config [name]",
	Short: "Show resolved configuration",
	Long: `Show every configuration key, its resolved value and the tier that
supplied it. With a name, the workflow's own config is included.

Examples:
  workflow config
  workflow config summary
  workflow config summary --yaml`,
	Args: maxArgs(1),
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configYAML, "yaml", false, "Print as YAML")
}

func runConfig(cmd *cobra.Command, args []string) error {
	env, err := loadEnv(false)
	if err != nil {
		return err
	}

	opts := config.LoadOptions{
		GlobalFile: env.paths.ConfigFile(),
		Project:    env.project,
		WorkDir:    env.workDir,
	}
	if len(args) == 1 {
		if env.project == nil {
			return project.ErrProjectNotFound
		}
		if err := env.requireWorkflow(args[0]); err != nil {
			return err
		}
		opts.Workflow = args[0]
	}

	resolved, err := config.Load(env.fs, opts)
	if err != nil {
		return err
	}

	if configYAML {
		return writeYAML(cmd.OutOrStdout(), resolved.Settings())
	}
	return writeTable(cmd.OutOrStdout(), resolved.Settings())
}

func writeYAML(w io.Writer, settings []config.Setting) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(settings); err != nil {
		return err
	}
	return enc.Close()
}

func writeTable(w io.Writer, settings []config.Setting) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tVALUE\tORIGIN\t")
	for _, s := range settings {
		value, origin := s.Value.String(), s.Origin.String()
		if !s.Set {
			value, origin = "-", "unset"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", s.Key, value, origin)
	}
	return tw.Flush()
}
