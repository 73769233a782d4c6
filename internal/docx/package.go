package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"sync"

	goziputils "github.com/JJJJJJack/go-zip-utils"

	"github.com/JJJJJJack/go-docx-image/internal/types"
)

const DOC_PR_ID_ROOF = 2_147_483_647 // docx id attributes are 32-bit signed integers

var (
	templatedPartRe = regexp.MustCompile(`^word/(header|footer|document)\d*?\.xml$`)

	// every story part able to hold a drawing shares the docPr id space
	drawingPartRe = regexp.MustCompile(`^word/(header\d*|footer\d*|document|footnotes|endnotes|comments)\.xml$`)
	docPrIdRe     = regexp.MustCompile(`<wp:docPr\b[^>]*?\bid="(\d+)"`)
)

// Package is an opened DOCX container. It owns every part plus the parsed
// relationships documents and content-type manifest, which are cached by
// part path and written back by Bytes.
//
// Package does no internal locking. Callers sharing one Package between
// goroutines serialise through Lock and Unlock.
type Package struct {
	mu sync.Mutex

	files goziputils.ZipMap
	// part path : rewritten or new content
	parts map[string][]byte

	rels         map[string]*Relationships
	contentTypes *ContentTypes

	docPrScanned   bool
	greaterDocPrId uint64
}

// OpenPackage reads a DOCX container from memory.
func OpenPackage(docxBytes []byte) (*Package, error) {
	zm, err := goziputils.NewZipMapFromBytes(docxBytes)
	if err != nil {
		return nil, fmt.Errorf("unable to create DOCX zip map: %w", err)
	}

	return &Package{
		files: zm,
		parts: make(map[string][]byte),
		rels:  make(map[string]*Relationships),
	}, nil
}

func (p *Package) Lock()   { p.mu.Lock() }
func (p *Package) Unlock() { p.mu.Unlock() }

// Has reports whether a part exists at exactly name.
func (p *Package) Has(name string) bool {
	if _, ok := p.parts[name]; ok {
		return true
	}
	if _, ok := p.rels[name]; ok {
		return true
	}
	if name == ContentTypesPath && p.contentTypes != nil {
		return true
	}
	return p.files[name] != nil
}

// Read returns the current content of a part. Cached documents are
// serialised so Read always reflects pending changes.
func (p *Package) Read(name string) ([]byte, error) {
	if rels, ok := p.rels[name]; ok {
		return rels.ToXml()
	}
	if name == ContentTypesPath && p.contentTypes != nil {
		return p.contentTypes.ToXml()
	}
	if data, ok := p.parts[name]; ok {
		return data, nil
	}

	f := p.files[name]
	if f == nil {
		return nil, fmt.Errorf("part '%s' not found in package", name)
	}

	data, err := goziputils.ReadZipFileContent(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read part '%s': %w", name, err)
	}

	return data, nil
}

// Write stores data at name, replacing any previous content. A cached
// document for the same path is dropped.
func (p *Package) Write(name string, data []byte) {
	delete(p.rels, name)
	if name == ContentTypesPath {
		p.contentTypes = nil
	}

	p.parts[name] = data
}

// Names returns every part path, the content-type manifest first and the
// rest sorted.
func (p *Package) Names() []string {
	seen := make(map[string]struct{}, len(p.files)+len(p.parts)+len(p.rels))
	for name := range p.files {
		seen[name] = struct{}{}
	}
	for name := range p.parts {
		seen[name] = struct{}{}
	}
	for name := range p.rels {
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	slices.SortFunc(names, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == ContentTypesPath:
			return -1
		case b == ContentTypesPath:
			return 1
		case a < b:
			return -1
		default:
			return 1
		}
	})

	return names
}

// Match returns the sorted part paths matching re.
func (p *Package) Match(re *regexp.Regexp) []string {
	var matched []string
	for _, name := range p.Names() {
		if re.MatchString(name) {
			matched = append(matched, name)
		}
	}
	return matched
}

// TemplatedParts returns the main document, header and footer parts.
func (p *Package) TemplatedParts() []string {
	return p.Match(templatedPartRe)
}

// ContentTypes returns the cached content-type manifest, parsing it on
// first use. A package without a manifest is malformed.
func (p *Package) ContentTypes() (*ContentTypes, error) {
	if p.contentTypes != nil {
		return p.contentTypes, nil
	}

	if !p.Has(ContentTypesPath) {
		return nil, types.NewConfigurationError("Package.ContentTypes", ContentTypesPath+" not found in package")
	}

	data, err := p.Read(ContentTypesPath)
	if err != nil {
		return nil, err
	}

	ct, err := ParseContentTypes(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse content types file '%s': %w", ContentTypesPath, err)
	}

	delete(p.parts, ContentTypesPath)
	p.contentTypes = ct

	return ct, nil
}

// Relationships returns the cached relationships document at relsPath,
// parsing it on first use or creating an empty one when the part is absent.
func (p *Package) Relationships(relsPath string) (*Relationships, error) {
	if rels, ok := p.rels[relsPath]; ok {
		return rels, nil
	}

	rels := NewRelationships()
	if p.Has(relsPath) {
		data, err := p.Read(relsPath)
		if err != nil {
			return nil, err
		}

		rels, err = ParseRelationships(data)
		if err != nil {
			return nil, fmt.Errorf("unable to parse rel file '%s': %w", relsPath, err)
		}
	}

	delete(p.parts, relsPath)
	p.rels[relsPath] = rels

	return rels, nil
}

// NextDocPrId returns a wp:docPr id greater than every id present in the
// main document, headers, footers, footnotes, endnotes and comments, and
// than every id handed out before.
func (p *Package) NextDocPrId() (uint32, error) {
	if !p.docPrScanned {
		for _, name := range p.Match(drawingPartRe) {
			data, err := p.Read(name)
			if err != nil {
				return 0, err
			}

			for _, m := range docPrIdRe.FindAllSubmatch(data, -1) {
				id, err := strconv.ParseUint(string(m[1]), 10, 64)
				if err != nil {
					return 0, fmt.Errorf("could not parse DocPr ID '%s': %w", m[1], err)
				}
				if id > p.greaterDocPrId {
					p.greaterDocPrId = id
				}
			}
		}
		p.docPrScanned = true
	}

	if p.greaterDocPrId+1 >= DOC_PR_ID_ROOF {
		return 0, fmt.Errorf("surpassed %d while allocating a wp:docPr id", DOC_PR_ID_ROOF)
	}

	p.greaterDocPrId++
	return uint32(p.greaterDocPrId), nil
}

// Bytes flushes the cached documents and serialises the package.
func (p *Package) Bytes() ([]byte, error) {
	for relsPath, rels := range p.rels {
		data, err := rels.ToXml()
		if err != nil {
			return nil, fmt.Errorf("unable to marshal rels '%s': %w", relsPath, err)
		}
		p.parts[relsPath] = data
	}
	p.rels = make(map[string]*Relationships)

	if p.contentTypes != nil {
		data, err := p.contentTypes.ToXml()
		if err != nil {
			return nil, fmt.Errorf("unable to marshal content types to XML: %w", err)
		}
		p.parts[ContentTypesPath] = data
		p.contentTypes = nil
	}

	output := bytes.Buffer{}
	zipWriter := zip.NewWriter(&output)

	for _, name := range p.Names() {
		f := p.files[name]
		data, changed := p.parts[name]

		var err error
		switch {
		case !changed:
			err = goziputils.CopyFile(zipWriter, f)
		case f != nil:
			err = goziputils.RewriteFileIntoZipWriter(zipWriter, f, data)
		default:
			err = goziputils.WriteFile(zipWriter, name, data)
		}
		if err != nil {
			return nil, fmt.Errorf("unable to write part '%s': %w", name, err)
		}
	}

	err := zipWriter.Close()
	if err != nil {
		return nil, fmt.Errorf("unable to close zip writer: %w", err)
	}

	return output.Bytes(), nil
}
