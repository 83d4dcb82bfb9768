package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidValue is returned by typed accessors for malformed settings.
var ErrInvalidValue = errors.New("invalid config value")

// Setting is a resolved value tagged with the tier that supplied it.
type Setting struct {
	Key    Key    `yaml:"key"`
	Value  Value  `yaml:"value"`
	Origin Origin `yaml:"origin"`
	// Set is false when no tier supplied a non-empty value.
	Set bool `yaml:"set"`
}

// Resolved is the effective configuration for one invocation.
type Resolved struct {
	settings map[Key]Setting
}

// Resolve merges tiers given in cascade order (builtin, global, ancestors
// oldest to newest, project, workflow, cli). For every key the last tier
// holding a non-empty value wins; empty values pass through. Lists are
// atomic per tier. Resolve does not modify its input and is idempotent.
func Resolve(tiers []Tier) *Resolved {
	r := &Resolved{settings: make(map[Key]Setting, len(Keys))}
	for _, k := range Keys {
		s := Setting{Key: k}
		for _, t := range tiers {
			v, ok := t.Values[k]
			if !ok || v.Empty(k) {
				continue
			}
			s.Value = copyValue(v)
			s.Origin = t.Origin
			s.Set = true
		}
		r.settings[k] = s
	}
	return r
}

func copyValue(v Value) Value {
	if v.Items == nil {
		return Value{Text: v.Text}
	}
	return Value{Items: append([]string(nil), v.Items...)}
}

// Get returns the setting for k.
func (r *Resolved) Get(k Key) Setting {
	if s, ok := r.settings[k]; ok {
		return s
	}
	return Setting{Key: k}
}

// Settings returns all settings in display order.
func (r *Resolved) Settings() []Setting {
	out := make([]Setting, 0, len(Keys))
	for _, k := range Keys {
		out = append(out, r.Get(k))
	}
	return out
}

// String returns a scalar setting, or "" when unset.
func (r *Resolved) String(k Key) string {
	return strings.TrimSpace(r.Get(k).Value.Text)
}

// List returns a copy of a list setting.
func (r *Resolved) List(k Key) []string {
	return append([]string(nil), r.Get(k).Value.Items...)
}

// Origin returns the tier that supplied k.
func (r *Resolved) Origin(k Key) Origin {
	return r.Get(k).Origin
}

// Model returns the model identifier.
func (r *Resolved) Model() (string, error) {
	m := r.String(KeyModel)
	if m == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrInvalidValue, KeyModel)
	}
	return m, nil
}

// Temperature returns the sampling temperature, which must lie in [0, 1].
func (r *Resolved) Temperature() (float64, error) {
	raw := r.String(KeyTemperature)
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q from %s", ErrInvalidValue, KeyTemperature, raw, r.Origin(KeyTemperature))
	}
	if t < 0 || t > 1 {
		return 0, fmt.Errorf("%w: %s=%v out of range [0, 1]", ErrInvalidValue, KeyTemperature, t)
	}
	return t, nil
}

// MaxTokens returns the output token limit.
func (r *Resolved) MaxTokens() (int, error) {
	raw := r.String(KeyMaxTokens)
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s=%q from %s", ErrInvalidValue, KeyMaxTokens, raw, r.Origin(KeyMaxTokens))
	}
	return n, nil
}

// OutputFormat returns the output file extension without a leading dot.
func (r *Resolved) OutputFormat() string {
	f := strings.TrimPrefix(r.String(KeyOutputFormat), ".")
	if f == "" {
		return "md"
	}
	return f
}
