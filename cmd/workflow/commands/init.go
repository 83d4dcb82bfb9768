package commands

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/workflow/internal/config"
	"github.com/opencode-ai/workflow/internal/project"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a project",
	Long: `Create a .workflow directory in dir (default: the current directory).

The new project config leaves every key empty, so values pass through
from enclosing projects and the global config until set here.`,
	Args: maxArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		dir = args[0]
	}

	fs := afero.NewOsFs()
	paths := config.GetPaths()
	if err := paths.EnsurePaths(fs); err != nil {
		return fmt.Errorf("failed to prepare %s: %w", paths.Config, err)
	}

	p, err := project.Init(fs, dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized project in %s\n", p.MarkerPath())

	home, _ := os.UserHomeDir()
	if found, err := project.Discover(fs, p.Root, home); err == nil && len(found.Ancestors) > 0 {
		fmt.Fprintf(out, "Inherits configuration from %d enclosing project(s), nearest: %s\n",
			len(found.Ancestors), found.Ancestors[len(found.Ancestors)-1])
	}
	return nil
}
