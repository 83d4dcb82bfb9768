package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/workflow/internal/output"
)

var catCmd = &cobra.Command{
	Use:   "cat <name>",
	Short: "Print a workflow's latest output",
	Args:  exactArgs(1),
	RunE:  runCat,
}

func runCat(cmd *cobra.Command, args []string) error {
	env, err := loadEnv(true)
	if err != nil {
		return err
	}
	name := args[0]
	if err := env.requireWorkflow(name); err != nil {
		return err
	}

	path, err := output.NewWriter(env.fs, env.project, nil).Latest(name)
	if err != nil {
		return withHint(err, "run 'workflow run %s' first", name)
	}

	f, err := env.fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(cmd.OutOrStdout(), f)
	return err
}
