package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentBlock_IsDocument(t *testing.T) {
	assert.True(t, ContentBlock{Group: GroupContext}.IsDocument())
	assert.True(t, ContentBlock{Group: GroupDependency}.IsDocument())
	assert.True(t, ContentBlock{Group: GroupInput}.IsDocument())
	assert.False(t, ContentBlock{Group: GroupTask}.IsDocument())
	assert.False(t, ContentBlock{Group: GroupSystem}.IsDocument())
}

func TestRequest_CacheMarkers(t *testing.T) {
	req := &Request{
		System: []RequestBlock{{Type: "text", Text: "a", CacheControl: EphemeralCache()}},
		Messages: []RequestMessage{{Role: "user", Content: []RequestBlock{
			{Type: "text", Text: "b", CacheControl: EphemeralCache()},
			{Type: "text", Text: "task"},
		}}},
	}
	assert.Equal(t, 2, req.CacheMarkers())
}

func TestRequestBlock_JSON(t *testing.T) {
	data, err := json.Marshal(RequestBlock{Type: "text", Text: "plain"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text","text":"plain"}`, string(data))

	data, err = json.Marshal(RequestBlock{
		Type:         "document",
		Source:       &BlockSource{Type: "base64", MediaType: "application/pdf", Data: "AA=="},
		CacheControl: EphemeralCache(),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"document","source":{"type":"base64","media_type":"application/pdf","data":"AA=="},"cache_control":{"type":"ephemeral"}}`, string(data))
}
