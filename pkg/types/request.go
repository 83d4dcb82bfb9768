package types

// CacheControl marks the end of a cacheable prefix.
type CacheControl struct {
	Type string `json:"type"`
}

// EphemeralCache is the only cache marker the completion API accepts.
func EphemeralCache() *CacheControl {
	return &CacheControl{Type: "ephemeral"}
}

// BlockSource carries base64 data for document and image blocks.
type BlockSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// RequestBlock is a content block on the wire.
type RequestBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text,omitempty"`
	Source       *BlockSource  `json:"source,omitempty"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// RequestMessage is a single conversation turn.
type RequestMessage struct {
	Role    string         `json:"role"`
	Content []RequestBlock `json:"content"`
}

// Request is the completion request payload.
type Request struct {
	Model       string           `json:"model"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
	System      []RequestBlock   `json:"system,omitempty"`
	Messages    []RequestMessage `json:"messages"`
	Stream      bool             `json:"stream,omitempty"`
}

// CacheMarkers counts blocks carrying a cache marker across system and messages.
func (r *Request) CacheMarkers() int {
	n := 0
	for _, b := range r.System {
		if b.CacheControl != nil {
			n++
		}
	}
	for _, m := range r.Messages {
		for _, b := range m.Content {
			if b.CacheControl != nil {
				n++
			}
		}
	}
	return n
}
