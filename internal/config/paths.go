package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

// Paths contains the user-level locations used by workflow.
type Paths struct {
	Config string // ~/.config/workflow
}

// GetPaths returns the standard paths, honoring XDG_CONFIG_HOME.
func GetPaths() *Paths {
	return &Paths{
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "workflow"),
	}
}

// DefaultPrompt is the system prompt the builtin tier selects.
const DefaultPrompt = "base"

// defaultPromptText seeds <prompt dir>/base.txt.
const defaultPromptText = `You are a careful assistant working through a document workflow.
Ground every statement in the supplied context and input documents.
When the documents do not answer something, say so instead of guessing.
Follow the task exactly and return only the requested output.
`

// EnsurePaths creates the config, prompt and task directories and seeds the
// default system prompt. Existing files are never overwritten.
func (p *Paths) EnsurePaths(fs afero.Fs) error {
	for _, dir := range []string{p.Config, p.PromptDir(), p.TaskDir()} {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	prompt := filepath.Join(p.PromptDir(), DefaultPrompt+".txt")
	exists, err := afero.Exists(fs, prompt)
	if err != nil || exists {
		return err
	}
	return afero.WriteFile(fs, prompt, []byte(defaultPromptText), 0644)
}

// ConfigFile returns the global-tier config file.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.Config, "config")
}

// PromptDir holds system prompt files named <name>.txt.
func (p *Paths) PromptDir() string {
	return filepath.Join(p.Config, "prompts")
}

// TaskDir holds reusable task files named <name>.txt.
func (p *Paths) TaskDir() string {
	return filepath.Join(p.Config, "tasks")
}

// EnvFile returns the dotenv file holding API credentials.
func (p *Paths) EnvFile() string {
	return filepath.Join(p.Config, ".env")
}

// ReadEnvFile parses a dotenv file without touching the process environment.
// A missing file yields an empty map.
func ReadEnvFile(fs afero.Fs, path string) (map[string]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return env, nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}
