package commands

import (
	"github.com/spf13/cobra"
)

var editCmd = &cobra.Command{
	Use:   "edit [name]",
	Short: "Edit project or workflow files",
	Long: `Open files in $VISUAL or $EDITOR.

Without a name, opens the project config and description. With a name,
opens the workflow's task and config.`,
	Args: maxArgs(1),
	RunE: runEdit,
}

func runEdit(cmd *cobra.Command, args []string) error {
	env, err := loadEnv(true)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return openFiles(env.project.ConfigPath(), env.project.DescriptionPath())
	}

	name := args[0]
	if err := env.requireWorkflow(name); err != nil {
		return err
	}
	return openFiles(env.project.TaskPath(name), env.project.WorkflowConfigPath(name))
}
