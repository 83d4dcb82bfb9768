package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var newEdit bool

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a workflow",
	Long: `Create .workflow/<name>/ with a config file and a task.txt.

Examples:
  workflow new summary
  workflow new report --edit`,
	Args: exactArgs(1),
	RunE: runNew,
}

func init() {
	newCmd.Flags().BoolVarP(&newEdit, "edit", "e", false, "Open the new files in $EDITOR")
}

func runNew(cmd *cobra.Command, args []string) error {
	name := args[0]

	env, err := loadEnv(true)
	if err != nil {
		return err
	}
	if err := env.project.NewWorkflow(env.fs, name); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created workflow %s in %s\n", name, env.project.WorkflowDir(name))
	if newEdit {
		return openFiles(env.project.TaskPath(name), env.project.WorkflowConfigPath(name))
	}
	return nil
}
