package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/workflow/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows",
	Args:  exactArgs(0),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	env, err := loadEnv(true)
	if err != nil {
		return err
	}

	names, err := env.project.Workflows(env.fs)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No workflows yet. Create one with 'workflow new <name>'.")
		return nil
	}

	writer := output.NewWriter(env.fs, env.project, nil)
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKFLOW\tLAST OUTPUT\t")
	for _, name := range names {
		last := "never"
		path, err := writer.Latest(name)
		switch {
		case err == nil:
			if info, statErr := env.fs.Stat(path); statErr == nil {
				last = info.ModTime().Format(time.DateTime)
			}
		case !errors.Is(err, output.ErrNoOutput):
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", name, last)
	}
	return tw.Flush()
}
