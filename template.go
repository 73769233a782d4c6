package docximage

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JJJJJJack/go-docx-image/internal/docx"
	tmplvars "github.com/JJJJJJack/go-docx-image/internal/template"
)

const mainDocumentPath = "word/document.xml"

// DocxTemplate renders a DOCX template: text/template runs over the main
// document, headers and footers, then registered modules render the tags
// they own.
type DocxTemplate struct {
	bytes               []byte
	output              bytes.Buffer
	modules             []Module
	templateFuncs       template.FuncMap
	filesPreProcessors  HandlersMap
	filesPostProcessors HandlersMap
	concurrency         int
	imageReplacer       ImageGetter
	sessionID           string
	logger              *slog.Logger
}

// NewDocxTemplateFromBytes creates a new DocxTemplate object from the provided DOCX file bytes.
// The DocxTemplate object can be used through the exposed high-level APIs.
func NewDocxTemplateFromBytes(docxBytes []byte) (*DocxTemplate, error) {
	// fail early on anything that is not a zip archive
	if _, err := docx.OpenPackage(docxBytes); err != nil {
		return nil, fmt.Errorf("unable to open DOCX file: %w", err)
	}

	sessionID := uuid.NewString()

	return &DocxTemplate{
		bytes:               docxBytes,
		output:              bytes.Buffer{},
		templateFuncs:       make(template.FuncMap),
		filesPreProcessors:  make(HandlersMap),
		filesPostProcessors: make(HandlersMap),
		concurrency:         1,
		sessionID:           sessionID,
		logger:              slog.New(slog.NewTextHandler(io.Discard, nil)).With("session", sessionID),
	}, nil
}

// NewDocxTemplateFromFilename creates a new DocxTemplate object from the provided DOCX filename (reading from disk).
// The DocxTemplate object can be used through the exposed high-level APIs.
func NewDocxTemplateFromFilename(docxFilename string) (*DocxTemplate, error) {
	docxBytes, err := os.ReadFile(docxFilename)
	if err != nil {
		return nil, fmt.Errorf("unable to read file %s: %w", docxFilename, err)
	}

	dt, err := NewDocxTemplateFromBytes(docxBytes)
	if err != nil {
		return nil, fmt.Errorf("unable to open DOCX file %s: %w", docxFilename, err)
	}

	return dt, nil
}

// SessionID identifies this template in log records.
func (dt *DocxTemplate) SessionID() string {
	return dt.sessionID
}

// AddModule registers a module. Module names must be unique.
func (dt *DocxTemplate) AddModule(m Module) error {
	if m == nil {
		return fmt.Errorf("module is nil")
	}

	for _, registered := range dt.modules {
		if registered.Name() == m.Name() {
			return fmt.Errorf("module '%s' is already registered", m.Name())
		}
	}

	dt.modules = append(dt.modules, m)
	return nil
}

// AddTemplateFuncs adds your custom template functions to evaluate when applying the template.
// Existing functions will be shadowed if the same name is used.
func (dt *DocxTemplate) AddTemplateFuncs(funcMap template.FuncMap) {
	maps.Copy(dt.templateFuncs, funcMap)
}

// AddPreProcessors adds XML pre-processing map in which the key is the XML file path
// (e.g., "word/document.xml") and the value is a list of functions to be applied to that file
// before the template has been applied.
func (dt *DocxTemplate) AddPreProcessors(filesPreProcessors HandlersMap) {
	dt.filesPreProcessors = filesPreProcessors
}

// AddPostProcessors adds XML post-processing map in which the key is the XML file path
// (e.g., "word/document.xml") and the value is a list of functions to be applied to that file
// after the template has been applied.
func (dt *DocxTemplate) AddPostProcessors(filesPostProcessors HandlersMap) {
	dt.filesPostProcessors = filesPostProcessors
}

// SetLogger sets the logger used for the template passes.
func (dt *DocxTemplate) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	dt.logger = logger.With("session", dt.sessionID)
}

// SetConcurrency bounds how many placeholders of one part ApplyContext
// resolves at once. The default of 1 resolves them in document order.
func (dt *DocxTemplate) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	dt.concurrency = n
}

// Apply applies the template with the provided values to the DOCX file.
// The templateValues parameter can be JSON bytes or any Go value. Module
// tags are rendered synchronously.
func (dt *DocxTemplate) Apply(templateValues any) error {
	return dt.apply(context.Background(), templateValues, false)
}

// ApplyContext is Apply with module tags resolved asynchronously: accessor
// futures are awaited with ctx.
func (dt *DocxTemplate) ApplyContext(ctx context.Context, templateValues any) error {
	return dt.apply(ctx, templateValues, true)
}

func (dt *DocxTemplate) apply(ctx context.Context, templateValues any, async bool) error {
	switch v := templateValues.(type) {
	case []byte:
		err := json.Unmarshal(v, &templateValues)
		if err != nil {
			return fmt.Errorf("error unmarshalling templateValues: %w", err)
		}
	}

	pkg, err := docx.OpenPackage(dt.bytes)
	if err != nil {
		return fmt.Errorf("unable to open DOCX package: %w", err)
	}

	// custom user pre processing
	err = dt.filesPreProcessors.run(pkg, "pre")
	if err != nil {
		return err
	}

	parts := pkg.TemplatedParts()
	if !slices.Contains(parts, mainDocumentPath) {
		return fmt.Errorf("%s not found in the DOCX file", mainDocumentPath)
	}

	opts := HostOptions{
		FileTypeConfig: DocxFileTypeConfig(),
		XMLFiles:       slices.Clone(parts),
	}
	for _, m := range dt.modules {
		opts = m.OptionsTransformer(opts, pkg)
		m.Set(SetContext{Package: pkg})
	}

	scope := NewScope(templateValues)
	for _, partPath := range parts {
		err := dt.applyPart(ctx, pkg, partPath, templateValues, scope, async)
		if err != nil {
			return fmt.Errorf("unable to apply template to file '%s': %w", partPath, err)
		}
	}

	// custom user post processing
	err = dt.filesPostProcessors.run(pkg, "post")
	if err != nil {
		return err
	}

	for _, name := range opts.XMLFiles {
		if slices.Contains(parts, name) || !pkg.Has(name) {
			continue
		}

		data, err := pkg.Read(name)
		if err != nil {
			return err
		}
		if err := checkWellFormed(data); err != nil {
			return fmt.Errorf("file '%s' is not well-formed XML: %w", name, err)
		}
	}

	output, err := pkg.Bytes()
	if err != nil {
		return fmt.Errorf("unable to serialise DOCX package: %w", err)
	}

	dt.output.Reset()
	dt.output.Write(output)

	dt.logger.Info("template applied", "parts", len(parts), "async", async, "size", len(output))

	return nil
}

func (dt *DocxTemplate) applyPart(ctx context.Context, pkg *Package, partPath string, values any, scope Scope, async bool) error {
	content, err := pkg.Read(partPath)
	if err != nil {
		return err
	}

	srcXml := dt.protectModuleTags(docx.PatchXml(string(content)))

	tmpl, err := template.New(partPath).Funcs(dt.templateFuncs).Parse(srcXml)
	if err != nil {
		return fmt.Errorf("unable to parse template: %w", err)
	}

	appliedTemplate := bytes.Buffer{}
	err = tmpl.Execute(&appliedTemplate, values)
	if err != nil {
		return fmt.Errorf("unable to execute template: %w", err)
	}
	rendered := appliedTemplate.String()

	nodes, err := dt.collectNodes(rendered)
	if err != nil {
		return err
	}

	output := rendered
	if len(nodes) > 0 {
		rc := RenderContext{Scope: scope, PartPath: partPath}
		fragments, err := dt.renderNodes(ctx, nodes, rc, async)
		if err != nil {
			return err
		}

		output = splice(rendered, nodes, fragments)
		dt.logger.Debug("module tags rendered", "part", partPath, "tags", len(nodes))
	}

	output, err = dt.replaceImages(ctx, pkg, partPath, output, async)
	if err != nil {
		return err
	}

	pkg.Write(partPath, []byte(output))

	return nil
}

// protectModuleTags escapes the tags owned by a module so text/template
// copies them to its output untouched.
func (dt *DocxTemplate) protectModuleTags(srcXml string) string {
	if len(dt.modules) == 0 {
		return srcXml
	}

	output := strings.Builder{}
	last := 0
	for _, tag := range docx.FindTags(srcXml) {
		if dt.owner(tag.Inner) == nil {
			continue
		}

		output.WriteString(srcXml[last:tag.Start])
		output.WriteString(`{{"{{"}}`)
		output.WriteString(tag.Inner)
		output.WriteString("}}")
		last = tag.End
	}
	output.WriteString(srcXml[last:])

	return output.String()
}

// owner returns the first module that parses text.
func (dt *DocxTemplate) owner(text string) Module {
	for _, m := range dt.modules {
		if m.Parse(text) != nil {
			return m
		}
	}
	return nil
}

func (dt *DocxTemplate) module(name string) Module {
	for _, m := range dt.modules {
		if m.Name() == name {
			return m
		}
	}
	return nil
}

// collectNodes parses and expands every module tag of the rendered part.
func (dt *DocxTemplate) collectNodes(rendered string) ([]*Node, error) {
	if len(dt.modules) == 0 {
		return nil, nil
	}

	expander := partExpander{xml: rendered}

	var nodes []*Node
	for _, tag := range docx.FindTags(rendered) {
		m := dt.owner(tag.Inner)
		if m == nil {
			continue
		}

		node := &Node{
			Module:      m.Name(),
			Tag:         tag.Inner,
			Placeholder: m.Parse(tag.Inner),
			Start:       tag.Start,
			End:         tag.End,
			Raw:         tag.Raw,
		}

		err := m.Postparse(node, expander)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, node)
	}

	slices.SortStableFunc(nodes, func(a, b *Node) int {
		return a.Start - b.Start
	})
	for i := 1; i < len(nodes); i++ {
		if nodes[i].Start < nodes[i-1].End {
			return nil, fmt.Errorf("tags '%s' and '%s' expand to overlapping elements",
				nodes[i-1].Tag, nodes[i].Tag)
		}
	}

	return nodes, nil
}

func (dt *DocxTemplate) renderNodes(ctx context.Context, nodes []*Node, rc RenderContext, async bool) ([]*Fragment, error) {
	fragments := make([]*Fragment, len(nodes))

	if !async {
		for i, node := range nodes {
			fragment, err := dt.module(node.Module).Render(node, rc)
			if err != nil {
				return nil, fmt.Errorf("unable to render tag '%s': %w", node.Tag, err)
			}
			fragments[i] = fragment
		}

		return fragments, checkFragments(nodes, fragments)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dt.concurrency)

	for i, node := range nodes {
		m := dt.module(node.Module)
		g.Go(func() error {
			fragment, err := m.Resolve(gctx, node, rc)
			if err != nil {
				return fmt.Errorf("unable to resolve tag '%s': %w", node.Tag, err)
			}
			fragments[i] = fragment
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return fragments, checkFragments(nodes, fragments)
}

func checkFragments(nodes []*Node, fragments []*Fragment) error {
	var errs []error
	for i, fragment := range fragments {
		if fragment == nil || len(fragment.Errors) == 0 {
			continue
		}
		errs = append(errs, fmt.Errorf("tag '%s': %w", nodes[i].Tag, errors.Join(fragment.Errors...)))
	}
	return errors.Join(errs...)
}

// splice replaces every node region of rendered with its fragment. Nodes
// are sorted and do not overlap; a nil fragment keeps the original XML.
func splice(rendered string, nodes []*Node, fragments []*Fragment) string {
	output := strings.Builder{}
	output.Grow(len(rendered))

	last := 0
	for i, node := range nodes {
		output.WriteString(rendered[last:node.Start])
		if fragments[i] != nil {
			output.WriteString(fragments[i].Markup)
		} else {
			output.WriteString(rendered[node.Start:node.End])
		}
		last = node.End
	}
	output.WriteString(rendered[last:])

	return output.String()
}

// partExpander expands nodes within one rendered part.
type partExpander struct {
	xml string
}

func (e partExpander) ExpandToOne(node *Node, level Level) error {
	start, end, err := docx.ExpandToOne(e.xml, node.Start, node.End, level)
	if err != nil {
		return fmt.Errorf("unable to expand tag '%s': %w", node.Tag, err)
	}

	node.Level = level
	node.Start = start
	node.End = end
	node.Raw = e.xml[start:end]

	return nil
}

// Variables lists the template references (".Name", "$row.Name") and the
// module placeholder keys of every templated part, sorted.
func (dt *DocxTemplate) Variables() ([]string, error) {
	pkg, err := docx.OpenPackage(dt.bytes)
	if err != nil {
		return nil, fmt.Errorf("unable to open DOCX package: %w", err)
	}

	seen := make(map[string]struct{})
	for _, partPath := range pkg.TemplatedParts() {
		content, err := pkg.Read(partPath)
		if err != nil {
			return nil, err
		}
		srcXml := docx.PatchXml(string(content))

		for _, tag := range docx.FindTags(srcXml) {
			for _, m := range dt.modules {
				if ph := m.Parse(tag.Inner); ph != nil {
					seen[ph.Key] = struct{}{}
					break
				}
			}
		}

		tmpl, err := template.New(partPath).Funcs(dt.templateFuncs).Parse(dt.protectModuleTags(srcXml))
		if err != nil {
			return nil, fmt.Errorf("unable to parse template in file '%s': %w", partPath, err)
		}

		for _, v := range tmplvars.ExtractAllVariables(tmpl) {
			seen[v] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(seen)), nil
}

// Save saves the modified docx file to the specified filename.
func (dt *DocxTemplate) Save(filename string) error {
	return os.WriteFile(filename, dt.output.Bytes(), 0644)
}

// Bytes returns the output bytes of the output docx file
// (empty if Apply was not used).
func (dt *DocxTemplate) Bytes() []byte {
	return dt.output.Bytes()
}

func checkWellFormed(data []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
