package config

// Key names a configuration setting. The key set is fixed.
type Key string

const (
	KeyModel          Key = "MODEL"
	KeyTemperature    Key = "TEMPERATURE"
	KeyMaxTokens      Key = "MAX_TOKENS"
	KeyOutputFormat   Key = "OUTPUT_FORMAT"
	KeySystemPrompts  Key = "SYSTEM_PROMPTS"
	KeyContextPattern Key = "CONTEXT_PATTERN"
	KeyContextFiles   Key = "CONTEXT_FILES"
	KeyInputPattern   Key = "INPUT_PATTERN"
	KeyInputFiles     Key = "INPUT_FILES"
	KeyDependsOn      Key = "DEPENDS_ON"
)

// Keys lists every key in display order.
var Keys = []Key{
	KeyModel,
	KeyTemperature,
	KeyMaxTokens,
	KeyOutputFormat,
	KeySystemPrompts,
	KeyContextPattern,
	KeyContextFiles,
	KeyInputPattern,
	KeyInputFiles,
	KeyDependsOn,
}

var listKeys = map[Key]bool{
	KeySystemPrompts: true,
	KeyContextFiles:  true,
	KeyInputFiles:    true,
	KeyDependsOn:     true,
}

// IsList reports whether the key holds an ordered list.
func (k Key) IsList() bool {
	return listKeys[k]
}

// IsPath reports whether the key's values are filesystem paths or patterns,
// which are resolved relative to the project that declared them.
func (k Key) IsPath() bool {
	switch k {
	case KeyContextPattern, KeyContextFiles, KeyInputPattern, KeyInputFiles:
		return true
	}
	return false
}

// LookupKey returns the key named s.
func LookupKey(s string) (Key, bool) {
	for _, k := range Keys {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}
