package types

// BlockKind identifies how a content block is carried on the wire.
type BlockKind string

const (
	KindText  BlockKind = "text"
	KindPDF   BlockKind = "pdf"
	KindImage BlockKind = "image"
)

// BlockGroup records where a block came from in the request.
type BlockGroup string

const (
	// GroupSystem holds system prompts, the project description and the date stamp.
	GroupSystem BlockGroup = "system"
	// GroupDependency holds outputs of upstream workflows (part of CONTEXT).
	GroupDependency BlockGroup = "dependency"
	// GroupContext holds supporting material.
	GroupContext BlockGroup = "context"
	// GroupInput holds the primary documents to analyze.
	GroupInput BlockGroup = "input"
	// GroupTask holds the task text. Always last, never cached.
	GroupTask BlockGroup = "task"
)

// ContentBlock is one unit of request content. Blocks live for a single
// request build and are never persisted.
type ContentBlock struct {
	Kind       BlockKind  `json:"kind"`
	Group      BlockGroup `json:"group"`
	SourcePath string     `json:"sourcePath,omitempty"`

	// Text is the payload of text blocks.
	Text string `json:"text,omitempty"`
	// Data is the raw payload of pdf and image blocks.
	Data []byte `json:"-"`
	// MediaType is set for pdf and image blocks.
	MediaType string `json:"mediaType,omitempty"`

	// Stable is true when the block is expected to be identical on the next
	// invocation. Unstable blocks never carry a cache marker.
	Stable bool `json:"stable"`
	// Cache is set by the breakpoint planner.
	Cache bool `json:"cache,omitempty"`
}

// IsDocument reports whether the block is user-side document content
// (anything but the task).
func (b ContentBlock) IsDocument() bool {
	return b.Group != GroupTask && b.Group != GroupSystem
}
