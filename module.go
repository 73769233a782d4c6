package docximage

import (
	"context"

	"github.com/JJJJJJack/go-docx-image/internal/docx"
)

// Package is an opened DOCX container shared by the host and its modules
// for one render pass.
type Package = docx.Package

// Level is the element a placeholder tag is expanded to.
type Level = docx.Level

const (
	LevelRun       = docx.LevelRun
	LevelParagraph = docx.LevelParagraph
)

// Module is the hook contract a host drives for every registered plugin,
// in this order: OptionsTransformer and Set, then Parse for every tag,
// Postparse for every owned tag, and finally Render or Resolve.
type Module interface {
	// Name is the discriminant stored in Node.Module for owned nodes.
	Name() string
	// Parse returns nil for tag text the module does not own.
	Parse(text string) *Placeholder
	Postparse(node *Node, x Expander) error
	// Render and Resolve return a nil fragment for nodes of other modules.
	Render(node *Node, rc RenderContext) (*Fragment, error)
	Resolve(ctx context.Context, node *Node, rc RenderContext) (*Fragment, error)
	Set(sc SetContext)
	OptionsTransformer(opts HostOptions, pkg *Package) HostOptions
}

// Expander widens a node to the innermost enclosing element of a level.
type Expander interface {
	ExpandToOne(node *Node, level Level) error
}

// Scope resolves placeholder keys against the template values.
type Scope interface {
	Lookup(key string) (any, bool)
}

// Placeholder is what Parse makes of an owned tag.
type Placeholder struct {
	Key      string
	Centered bool
}

// Node is a tag found in a templated part. Start and End are byte offsets
// into the rendered part; after expansion they delimit the whole element
// and Raw holds its original XML.
type Node struct {
	Module      string
	Tag         string
	Placeholder *Placeholder
	Level       Level
	Start       int
	End         int
	Raw         string
}

// Fragment is the markup that replaces a node.
type Fragment struct {
	Markup string
	Errors []error
}

type RenderContext struct {
	Scope    Scope
	PartPath string
}

type SetContext struct {
	Package *Package
}

// FileTypeConfig names the elements of the document format.
type FileTypeConfig struct {
	FileType  string
	TagText   string
	Run       Level
	Paragraph Level
}

// DocxFileTypeConfig is the WordprocessingML configuration.
func DocxFileTypeConfig() FileTypeConfig {
	return FileTypeConfig{
		FileType:  "docx",
		TagText:   "w:t",
		Run:       LevelRun,
		Paragraph: LevelParagraph,
	}
}

// HostOptions is what the host hands to OptionsTransformer. XMLFiles lists
// the parts the host keeps track of and checks before serialising.
type HostOptions struct {
	FileTypeConfig FileTypeConfig
	XMLFiles       []string
}
