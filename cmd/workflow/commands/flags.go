package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/workflow/internal/config"
	"github.com/opencode-ai/workflow/internal/manifest"
)

// requestFlags are the source, API and execution flags shared by run and task.
type requestFlags struct {
	contextFiles   []string
	contextPattern string
	inputFiles     []string
	inputPattern   string
	dependsOn      []string

	model         string
	temperature   float64
	maxTokens     int
	systemPrompts []string
	outputFormat  string

	stream      bool
	countTokens bool
	dryRun      bool
}

func (f *requestFlags) register(cmd *cobra.Command, withDeps bool) {
	flags := cmd.Flags()
	flags.StringArrayVar(&f.contextFiles, "context-file", nil, "Add a context file (repeatable)")
	flags.StringVar(&f.contextPattern, "context-pattern", "", "Add context files matching a glob (** supported)")
	flags.StringArrayVar(&f.inputFiles, "input-file", nil, "Add an input file (repeatable)")
	flags.StringVar(&f.inputPattern, "input-pattern", "", "Add input files matching a glob (** supported)")
	if withDeps {
		flags.StringSliceVar(&f.dependsOn, "depends-on", nil, "Workflows whose output is included as context")
	}

	flags.StringVarP(&f.model, "model", "m", "", "Model to use")
	flags.Float64Var(&f.temperature, "temperature", 0, "Sampling temperature (0-1)")
	flags.IntVar(&f.maxTokens, "max-tokens", 0, "Maximum output tokens")
	flags.StringSliceVar(&f.systemPrompts, "system-prompts", nil, "System prompt names, comma separated")
	flags.StringVar(&f.outputFormat, "output-format", "", "Output file extension (md, txt, json, ...)")

	flags.BoolVar(&f.stream, "stream", false, "Stream the response as it is generated")
	flags.BoolVar(&f.countTokens, "count-tokens", false, "Print token estimates and exit")
	flags.BoolVar(&f.dryRun, "dry-run", false, "Print the assembled request and exit")
}

// cliValues returns the config keys set by flags that were passed
// explicitly. Flags passed with an empty value are dropped by the cli tier.
func (f *requestFlags) cliValues(cmd *cobra.Command) map[config.Key]config.Value {
	values := make(map[config.Key]config.Value)
	changed := cmd.Flags().Changed

	if changed("model") {
		values[config.KeyModel] = config.Scalar(f.model)
	}
	if changed("temperature") {
		values[config.KeyTemperature] = config.Scalar(strconv.FormatFloat(f.temperature, 'f', -1, 64))
	}
	if changed("max-tokens") {
		values[config.KeyMaxTokens] = config.Scalar(strconv.Itoa(f.maxTokens))
	}
	if changed("system-prompts") {
		values[config.KeySystemPrompts] = config.List(f.systemPrompts...)
	}
	if changed("output-format") {
		values[config.KeyOutputFormat] = config.Scalar(f.outputFormat)
	}
	if changed("depends-on") {
		values[config.KeyDependsOn] = config.List(f.dependsOn...)
	}
	return values
}

// sources returns the one-off document sources.
func (f *requestFlags) sources() manifest.Sources {
	return manifest.Sources{
		ContextPattern: f.contextPattern,
		ContextFiles:   f.contextFiles,
		InputPattern:   f.inputPattern,
		InputFiles:     f.inputFiles,
	}
}
