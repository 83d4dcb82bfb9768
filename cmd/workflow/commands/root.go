// Package commands provides the CLI commands for workflow.
package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/workflow/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
	noColor   bool
)

var rootCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Run layered-config AI workflows",
	Long: `workflow assembles completion requests from layered configuration and
project documents, places cache breakpoints, and records each result.

Run 'workflow init' to create a project, 'workflow new <name>' to add a
workflow, and 'workflow run <name>' to execute it.`,
	Version:       Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(os.Stderr)
		if noColor {
			color.NoColor = true
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("workflow %s (%s)\n", Version, BuildTime))
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(openCmd)
}

// setupLogging discards logs unless --print-logs is set, keeping stdout and
// stderr free for model output and diagnostics.
func setupLogging(w io.Writer) {
	if !printLogs {
		logging.Disable()
		return
	}
	cfg := logging.DefaultConfig()
	cfg.Output = w
	cfg.Level = logging.ParseLevel(logLevel)
	cfg.Pretty = true
	logging.Init(cfg)
	logging.StartRun(logging.NewRunID())
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	if strings.HasPrefix(err.Error(), "unknown command") {
		err = usageErrorf("%v", err)
	}
	return report(os.Stderr, err)
}
