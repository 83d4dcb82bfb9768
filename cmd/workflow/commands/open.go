package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/workflow/internal/output"
)

var openCmd = &cobra.Command{
	Use:   "open <name>",
	Short: "Open a workflow's latest output with the default application",
	Args:  exactArgs(1),
	RunE:  runOpen,
}

func runOpen(cmd *cobra.Command, args []string) error {
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

	if err := openerCommand(path).Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return nil
}
