// Package config provides configuration loading, cascade resolution, and path
// management for workflow.
//
// # Tiers
//
// Configuration is read from a fixed sequence of tiers, most general first:
//
//  1. builtin - compiled-in defaults
//  2. global - ~/.config/workflow/config (XDG_CONFIG_HOME honored)
//  3. ancestor - the config of every enclosing project, outermost first
//  4. project - .workflow/config of the innermost project
//  5. workflow - .workflow/<name>/config
//  6. cli - flags passed on the command line
//
// # Pass-through
//
// Resolve walks the tiers in order. A tier replaces a key's running value only
// when it supplies a non-empty value, so leaving a key empty in a file is the
// way to inherit it. List keys (SYSTEM_PROMPTS, CONTEXT_FILES, INPUT_FILES,
// DEPENDS_ON) are atomic: a tier supplies its whole list or defers entirely.
// Flags passed with an empty value on the command line also defer.
//
// Every resolved value carries its Origin, so the "config" command can show
// where each setting came from without recomputing anything.
//
// # File format
//
// Config files are shell-style assignments:
//
//	# comments are allowed
//	MODEL=claude-sonnet-4-5
//	TEMPERATURE=0.7
//	SYSTEM_PROMPTS=(base research)
//	CONTEXT_FILES=("notes/meeting 1.md" notes/summary.md)
//
// Files are parsed with mvdan.cc/sh/v3 and never executed. Commands,
// substitutions and variable expansion are rejected with ErrConfigSyntax.
//
// # Credentials
//
// The API key is taken from ANTHROPIC_API_KEY or from the dotenv file at
// ~/.config/workflow/.env, read with ReadEnvFile. Nothing in this package
// writes to the process environment.
package config
