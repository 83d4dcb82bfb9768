package dispatch

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/opencode-ai/workflow/pkg/types"
)

// newMessageParams maps an assembled request onto SDK parameters. Cache
// markers are carried only where the request has them.
func newMessageParams(req *types.Request) (anthropic.MessageNewParams, error) {
	messages, err := toMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	system, err := toTextBlocks(req.System)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	return anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		System:      system,
		Messages:    messages,
	}, nil
}

func newCountParams(req *types.Request) (anthropic.MessageCountTokensParams, error) {
	messages, err := toMessages(req.Messages)
	if err != nil {
		return anthropic.MessageCountTokensParams{}, err
	}
	system, err := toTextBlocks(req.System)
	if err != nil {
		return anthropic.MessageCountTokensParams{}, err
	}

	params := anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(req.Model),
		Messages: messages,
	}
	if len(system) > 0 {
		params.System = anthropic.MessageCountTokensParamsSystemUnion{OfTextBlockArray: system}
	}
	return params, nil
}

func toMessages(msgs []types.RequestMessage) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			block, err := toBlock(b)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		}
		switch m.Role {
		case "user":
			out = append(out, anthropic.NewUserMessage(blocks...))
		case "assistant":
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	return out, nil
}

func toTextBlocks(blocks []types.RequestBlock) ([]anthropic.TextBlockParam, error) {
	out := make([]anthropic.TextBlockParam, 0, len(blocks))
	for _, b := range blocks {
		if b.Type != "text" {
			return nil, fmt.Errorf("system block must be text, got %q", b.Type)
		}
		out = append(out, anthropic.TextBlockParam{Text: b.Text, CacheControl: cacheControl(b)})
	}
	return out, nil
}

func toBlock(b types.RequestBlock) (anthropic.ContentBlockParamUnion, error) {
	switch b.Type {
	case "text":
		return anthropic.ContentBlockParamUnion{
			OfText: &anthropic.TextBlockParam{Text: b.Text, CacheControl: cacheControl(b)},
		}, nil
	case "image":
		if b.Source == nil {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("image block has no source")
		}
		return anthropic.ContentBlockParamUnion{
			OfImage: &anthropic.ImageBlockParam{
				Source: anthropic.ImageBlockParamSourceUnion{
					OfBase64: &anthropic.Base64ImageSourceParam{
						Data:      b.Source.Data,
						MediaType: anthropic.Base64ImageSourceMediaType(b.Source.MediaType),
					},
				},
				CacheControl: cacheControl(b),
			},
		}, nil
	case "document":
		if b.Source == nil {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("document block has no source")
		}
		return anthropic.ContentBlockParamUnion{
			OfDocument: &anthropic.DocumentBlockParam{
				Source: anthropic.DocumentBlockParamSourceUnion{
					OfBase64: &anthropic.Base64PDFSourceParam{Data: b.Source.Data},
				},
				CacheControl: cacheControl(b),
			},
		}, nil
	}
	return anthropic.ContentBlockParamUnion{}, fmt.Errorf("unsupported block type %q", b.Type)
}

// cacheControl returns the zero value, which is omitted on the wire, for
// unmarked blocks.
func cacheControl(b types.RequestBlock) anthropic.CacheControlEphemeralParam {
	if b.CacheControl == nil {
		return anthropic.CacheControlEphemeralParam{}
	}
	return anthropic.NewCacheControlEphemeralParam()
}
