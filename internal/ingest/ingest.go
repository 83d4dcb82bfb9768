// Package ingest converts file references into typed content blocks.
//
// PDFs and images are passed through as binary payloads, HTML is converted
// to Markdown, and everything else is read as text. Page handling, image
// resizing and office formats are left to the remote service.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/opencode-ai/workflow/pkg/types"
)

// MaxParallel bounds concurrent file reads in IngestAll.
const MaxParallel = 8

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Ref points at one file to ingest.
type Ref struct {
	Path  string
	Group types.BlockGroup
	// Label overrides the path shown to the model, e.g. a dependency name.
	Label string
}

// KindOf classifies a path by extension.
func KindOf(path string) types.BlockKind {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return types.KindPDF
	}
	if _, ok := imageTypes[ext]; ok {
		return types.KindImage
	}
	return types.KindText
}

// Ingest reads a single file into a content block. Document blocks are
// marked stable.
func Ingest(fs afero.Fs, ref Ref) (types.ContentBlock, error) {
	data, err := afero.ReadFile(fs, ref.Path)
	if err != nil {
		return types.ContentBlock{}, err
	}

	block := types.ContentBlock{
		Kind:       KindOf(ref.Path),
		Group:      ref.Group,
		SourcePath: ref.Path,
		Stable:     true,
	}

	switch block.Kind {
	case types.KindPDF:
		block.MediaType = "application/pdf"
		block.Data = data
	case types.KindImage:
		block.MediaType = imageTypes[strings.ToLower(filepath.Ext(ref.Path))]
		block.Data = data
	default:
		text := string(data)
		if isHTML(ref.Path) {
			text, err = convertHTMLToMarkdown(text)
			if err != nil {
				return types.ContentBlock{}, fmt.Errorf("failed to convert %s: %w", ref.Path, err)
			}
		}
		label := ref.Label
		if label == "" {
			label = ref.Path
		}
		block.Text = wrapDocument(ref.Group, label, text)
	}
	return block, nil
}

// IngestAll ingests refs concurrently and returns blocks in the order of refs.
func IngestAll(ctx context.Context, fs afero.Fs, refs []Ref) ([]types.ContentBlock, error) {
	blocks := make([]types.ContentBlock, len(refs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxParallel)
	for i, ref := range refs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := Ingest(fs, ref)
			if err != nil {
				return err
			}
			blocks[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}

func isHTML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}

// wrapDocument tags text with its source so the model can cite it.
func wrapDocument(group types.BlockGroup, label, text string) string {
	tag := "document"
	switch group {
	case types.GroupDependency:
		tag = "dependency"
	case types.GroupContext:
		tag = "context"
	case types.GroupInput:
		tag = "input"
	}
	return fmt.Sprintf("<%s source=%q>\n%s\n</%s>", tag, label, strings.TrimRight(text, "\n"), tag)
}

// convertHTMLToMarkdown converts HTML content to Markdown format.
func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})

	// Remove non-content elements
	converter.Remove("script", "style", "meta", "link")

	return converter.ConvertString(html)
}
