// Package request assembles the completion payload from a manifest.
package request

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/opencode-ai/workflow/internal/cache"
	"github.com/opencode-ai/workflow/internal/config"
	"github.com/opencode-ai/workflow/internal/manifest"
	"github.com/opencode-ai/workflow/pkg/types"
)

// Settings are the API parameters of a request.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Stream      bool
}

// SettingsFrom reads and validates API parameters from a resolved config.
func SettingsFrom(r *config.Resolved) (Settings, error) {
	model, err := r.Model()
	if err != nil {
		return Settings{}, err
	}
	temp, err := r.Temperature()
	if err != nil {
		return Settings{}, err
	}
	maxTokens, err := r.MaxTokens()
	if err != nil {
		return Settings{}, err
	}
	return Settings{Model: model, Temperature: temp, MaxTokens: maxTokens}, nil
}

// Build plans cache breakpoints and serializes the manifest. The manifest
// is not modified.
func Build(s Settings, m *manifest.Manifest) (*types.Request, error) {
	system := append([]types.ContentBlock(nil), m.System...)
	user := append([]types.ContentBlock(nil), m.User...)

	plan, err := cache.PlanBreakpoints(system, user)
	if err != nil {
		return nil, err
	}
	cache.Apply(system, user, plan)
	if err := cache.Validate(system, user); err != nil {
		return nil, err
	}

	req := &types.Request{
		Model:       s.Model,
		MaxTokens:   s.MaxTokens,
		Temperature: s.Temperature,
		Stream:      s.Stream,
	}
	for _, b := range system {
		req.System = append(req.System, toWire(b))
	}
	content := make([]types.RequestBlock, 0, len(user))
	for _, b := range user {
		content = append(content, toWire(b))
	}
	req.Messages = []types.RequestMessage{{Role: "user", Content: content}}

	if n := req.CacheMarkers(); n > cache.MaxBreakpoints {
		return nil, fmt.Errorf("%w: %d markers in payload", cache.ErrCacheBudgetExceeded, n)
	}
	return req, nil
}

func toWire(b types.ContentBlock) types.RequestBlock {
	var out types.RequestBlock
	switch b.Kind {
	case types.KindPDF:
		out.Type = "document"
		out.Source = base64Source(b)
	case types.KindImage:
		out.Type = "image"
		out.Source = base64Source(b)
	default:
		out.Type = "text"
		out.Text = b.Text
	}
	if b.Cache {
		out.CacheControl = types.EphemeralCache()
	}
	return out
}

func base64Source(b types.ContentBlock) *types.BlockSource {
	return &types.BlockSource{
		Type:      "base64",
		MediaType: b.MediaType,
		Data:      base64.StdEncoding.EncodeToString(b.Data),
	}
}

// Encode writes req as indented JSON.
func Encode(w io.Writer, req *types.Request) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(req)
}
