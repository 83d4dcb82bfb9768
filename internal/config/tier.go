package config

import (
	"fmt"
	"strings"
)

// TierKind identifies a layer of the configuration cascade.
type TierKind string

// Tier kinds in cascade order.
const (
	TierBuiltin  TierKind = "builtin"
	TierGlobal   TierKind = "global"
	TierAncestor TierKind = "ancestor"
	TierProject  TierKind = "project"
	TierWorkflow TierKind = "workflow"
	TierCLI      TierKind = "cli"
)

// Value is a tier's value for one key. Scalar keys use Text, list keys use Items.
type Value struct {
	Text  string   `yaml:"text,omitempty"`
	Items []string `yaml:"items,omitempty"`
}

// Scalar returns a scalar value.
func Scalar(s string) Value {
	return Value{Text: s}
}

// List returns a list value. Empty items are dropped.
func List(items ...string) Value {
	var out []string
	for _, it := range items {
		if strings.TrimSpace(it) != "" {
			out = append(out, it)
		}
	}
	return Value{Items: out}
}

// Empty reports whether the value defers to earlier tiers.
func (v Value) Empty(k Key) bool {
	if k.IsList() {
		return len(v.Items) == 0
	}
	return strings.TrimSpace(v.Text) == ""
}

// String renders the value for display.
func (v Value) String() string {
	if v.Items != nil {
		return "(" + strings.Join(v.Items, " ") + ")"
	}
	return v.Text
}

// Origin records which tier supplied a resolved value.
type Origin struct {
	Kind TierKind `yaml:"tier"`
	// Source is the file the value was read from, empty for builtin and cli.
	Source string `yaml:"source,omitempty"`
	// Root is the project root that relative paths are resolved against.
	Root string `yaml:"root,omitempty"`
}

func (o Origin) String() string {
	if o.Source == "" {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s (%s)", o.Kind, o.Source)
}

// Tier is one layer of the cascade.
type Tier struct {
	Origin
	Values map[Key]Value
}

// NewTier returns an empty tier.
func NewTier(kind TierKind, source, root string) Tier {
	return Tier{
		Origin: Origin{Kind: kind, Source: source, Root: root},
		Values: make(map[Key]Value),
	}
}

// Defaults returns the builtin tier.
func Defaults() Tier {
	t := NewTier(TierBuiltin, "", "")
	t.Values[KeyModel] = Scalar("claude-sonnet-4-5")
	t.Values[KeyTemperature] = Scalar("1.0")
	t.Values[KeyMaxTokens] = Scalar("4096")
	t.Values[KeyOutputFormat] = Scalar("md")
	t.Values[KeySystemPrompts] = List(DefaultPrompt)
	return t
}

// CLITier builds the synthetic top tier from explicitly passed flags.
// Flags passed with an empty value do not participate.
func CLITier(values map[Key]Value, workDir string) Tier {
	t := NewTier(TierCLI, "", workDir)
	for k, v := range values {
		if v.Empty(k) {
			continue
		}
		t.Values[k] = v
	}
	return t
}
