package request

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/opencode-ai/workflow/internal/config"
	"github.com/opencode-ai/workflow/internal/manifest"
	"github.com/opencode-ai/workflow/pkg/types"
)

var settings = Settings{Model: "claude-sonnet-4-5", Temperature: 0.5, MaxTokens: 1000}

func mixedManifest() *manifest.Manifest {
	return &manifest.Manifest{
		System: []types.ContentBlock{
			{Kind: types.KindText, Group: types.GroupSystem, Text: "base", Stable: true},
			{Kind: types.KindText, Group: types.GroupSystem, Text: "Today's date: 2026-01-01"},
		},
		User: []types.ContentBlock{
			{Kind: types.KindText, Group: types.GroupContext, Text: "context", Stable: true},
			{Kind: types.KindText, Group: types.GroupInput, Text: "input", Stable: true},
			{Kind: types.KindText, Group: types.GroupTask, Text: "task"},
		},
	}
}

func TestBuild_MixedContent(t *testing.T) {
	m := mixedManifest()
	req, err := Build(settings, m)
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-5", req.Model)
	assert.Equal(t, 1000, req.MaxTokens)
	require.Len(t, req.System, 2)
	assert.NotNil(t, req.System[0].CacheControl)
	assert.Nil(t, req.System[1].CacheControl)

	require.Len(t, req.Messages, 1)
	content := req.Messages[0].Content
	require.Len(t, content, 3)
	assert.Nil(t, content[0].CacheControl)
	require.NotNil(t, content[1].CacheControl)
	assert.Equal(t, "ephemeral", content[1].CacheControl.Type)
	assert.Nil(t, content[2].CacheControl)
	assert.Equal(t, "task", content[2].Text)
	assert.Equal(t, 2, req.CacheMarkers())

	// the manifest itself stays unmarked
	assert.False(t, m.User[1].Cache)
}

func TestBuild_BinaryBlocks(t *testing.T) {
	m := &manifest.Manifest{
		User: []types.ContentBlock{
			{Kind: types.KindPDF, Group: types.GroupContext, Data: []byte("%PDF"), MediaType: "application/pdf", Stable: true},
			{Kind: types.KindImage, Group: types.GroupInput, Data: []byte{1, 2, 3}, MediaType: "image/png", Stable: true},
			{Kind: types.KindText, Group: types.GroupTask, Text: "describe"},
		},
	}
	req, err := Build(settings, m)
	require.NoError(t, err)

	content := req.Messages[0].Content
	assert.Equal(t, "document", content[0].Type)
	assert.Equal(t, "base64", content[0].Source.Type)
	assert.Equal(t, "JVBERg==", content[0].Source.Data)
	assert.Equal(t, "image", content[1].Type)
	assert.Equal(t, "image/png", content[1].Source.MediaType)

	// pdf -> image transition plus the final pre-task marker
	assert.NotNil(t, content[0].CacheControl)
	assert.NotNil(t, content[1].CacheControl)
}

func TestBuild_TaskOnly(t *testing.T) {
	m := &manifest.Manifest{User: []types.ContentBlock{{Kind: types.KindText, Group: types.GroupTask, Text: "hi"}}}
	req, err := Build(settings, m)
	require.NoError(t, err)
	assert.Equal(t, 0, req.CacheMarkers())
	assert.Empty(t, req.System)
}

func TestEncode(t *testing.T) {
	req, err := Build(Settings{Model: "m", MaxTokens: 10, Temperature: 1, Stream: true}, mixedManifest())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, req))

	out := buf.String()
	assert.Equal(t, "m", gjson.Get(out, "model").String())
	assert.Equal(t, int64(10), gjson.Get(out, "max_tokens").Int())
	assert.True(t, gjson.Get(out, "stream").Bool())
	assert.Equal(t, "user", gjson.Get(out, "messages.0.role").String())
	assert.Equal(t, "ephemeral", gjson.Get(out, "messages.0.content.1.cache_control.type").String())
	assert.False(t, gjson.Get(out, "messages.0.content.2.cache_control").Exists())
	assert.False(t, gjson.Get(out, "system.1.cache_control").Exists())
}

func TestSettingsFrom(t *testing.T) {
	s, err := SettingsFrom(config.Resolve([]config.Tier{config.Defaults()}))
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", s.Model)
	assert.Equal(t, 1.0, s.Temperature)
	assert.Equal(t, 4096, s.MaxTokens)
}
