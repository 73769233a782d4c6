package docximage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JJJJJJack/go-docx-image/internal/docx"
	"github.com/JJJJJJack/go-docx-image/internal/metrics"
	"github.com/JJJJJJack/go-docx-image/internal/resolver"
	"github.com/JJJJJJack/go-docx-image/internal/sniff"
	"github.com/JJJJJJack/go-docx-image/internal/types"
)

// ModuleName is the discriminant of nodes owned by the image module.
const ModuleName = "docx-image"

var (
	zeroWidthReplacer = strings.NewReplacer(
		"\u200b", "",
		"\u200c", "",
		"\u200d", "",
		"\u2060", "",
		"\ufeff", "",
	)
	relsPartRe = regexp.MustCompile(`\.rels$`)
)

type (
	ImageGetter = resolver.ImageGetter
	SizeGetter  = resolver.SizeGetter
)

type ImageOptions struct {
	// Centered is the default alignment of "%name" placeholders.
	Centered bool
	GetImage ImageGetter
	GetSize  SizeGetter
	Logger   *slog.Logger
	// Registerer receives the module counters; nil disables them.
	Registerer prometheus.Registerer
}

// ImageModule embeds images for "{{%name}}" (inline) and "{{%%name}}"
// (centered paragraph) placeholders.
//
// Generated media names are numbered per instance, so use a fresh
// ImageModule for every document.
type ImageModule struct {
	centered bool
	getImage ImageGetter
	getSize  SizeGetter
	logger   *slog.Logger
	metrics  *metrics.Metrics

	pkg      *Package
	fileType *FileTypeConfig

	imageNumber atomic.Uint64
}

var _ Module = (*ImageModule)(nil)

// NewImageModule creates an image module. Both accessors are required.
func NewImageModule(opts ImageOptions) (*ImageModule, error) {
	const op = "NewImageModule"

	if opts.GetImage == nil {
		return nil, types.NewConfigurationError(op, "getImage accessor is required")
	}
	if opts.GetSize == nil {
		return nil, types.NewConfigurationError(op, "getSize accessor is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m, err := metrics.New(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("unable to register image metrics: %w", err)
	}

	return &ImageModule{
		centered: opts.Centered,
		getImage: opts.GetImage,
		getSize:  opts.GetSize,
		logger:   logger.With("module", ModuleName),
		metrics:  m,
	}, nil
}

func (m *ImageModule) Name() string {
	return ModuleName
}

// Parse recognises "%%name" and "%name". Zero-width characters Word may
// leave inside a tag are dropped from the key.
func (m *ImageModule) Parse(text string) *Placeholder {
	text = strings.TrimSpace(zeroWidthReplacer.Replace(text))

	centered := false
	switch {
	case strings.HasPrefix(text, "%%"):
		centered = true
		text = text[2:]
	case strings.HasPrefix(text, "%"):
		text = text[1:]
	default:
		return nil
	}

	key := strings.TrimSpace(text)
	if key == "" {
		return nil
	}

	return &Placeholder{Key: key, Centered: centered}
}

// Postparse expands a centered placeholder to its paragraph and an inline
// one to its run.
func (m *ImageModule) Postparse(node *Node, x Expander) error {
	if node == nil || node.Module != ModuleName {
		return nil
	}

	ft := DocxFileTypeConfig()
	if m.fileType != nil {
		ft = *m.fileType
	}

	level := ft.Run
	if m.isCentered(node.Placeholder) {
		level = ft.Paragraph
	}

	return x.ExpandToOne(node, level)
}

// Render embeds the image of node without blocking: accessors returning
// futures are rejected with a TypeMismatchError.
func (m *ImageModule) Render(node *Node, rc RenderContext) (*Fragment, error) {
	return m.process(context.Background(), node, rc, resolver.Immediate)
}

// Resolve embeds the image of node, awaiting accessor futures with ctx.
func (m *ImageModule) Resolve(ctx context.Context, node *Node, rc RenderContext) (*Fragment, error) {
	return m.process(ctx, node, rc, resolver.Suspend)
}

func (m *ImageModule) Set(sc SetContext) {
	if sc.Package != nil {
		m.pkg = sc.Package
	}
}

// OptionsTransformer adds every relationships part and the content-type
// manifest to the host's tracked files and captures the package and the
// file-type configuration.
func (m *ImageModule) OptionsTransformer(opts HostOptions, pkg *Package) HostOptions {
	if pkg == nil {
		return opts
	}

	tracked := append(pkg.Match(relsPartRe), docx.ContentTypesPath)
	for _, name := range tracked {
		if !slices.Contains(opts.XMLFiles, name) {
			opts.XMLFiles = append(opts.XMLFiles, name)
		}
	}

	ft := opts.FileTypeConfig
	m.fileType = &ft
	m.pkg = pkg

	return opts
}

func (m *ImageModule) isCentered(ph *Placeholder) bool {
	if ph != nil && ph.Centered {
		return true
	}
	return m.centered
}

func (m *ImageModule) process(ctx context.Context, node *Node, rc RenderContext, strategy resolver.Strategy) (*Fragment, error) {
	op := "ImageModule.Render"
	if strategy == resolver.Suspend {
		op = "ImageModule.Resolve"
	}

	if node == nil || node.Module != ModuleName {
		return nil, nil
	}
	if m.pkg == nil {
		return nil, types.NewConfigurationError(op, "no package, Set was not called")
	}
	if m.fileType == nil {
		return nil, types.NewConfigurationError(op, "no file type configuration, OptionsTransformer was not called")
	}

	ph := node.Placeholder
	if ph == nil {
		ph = m.Parse(node.Tag)
	}
	if ph == nil {
		return nil, types.NewConfigurationError(op, fmt.Sprintf("tag '%s' is not an image placeholder", node.Tag))
	}

	partPath := rc.PartPath
	if partPath == "" {
		partPath = mainDocumentPath
	}
	logger := m.logger.With("part", partPath, "tag", ph.Key)

	var value any
	found := false
	if rc.Scope != nil {
		value, found = rc.Scope.Lookup(ph.Key)
	}
	if !found || isFalsy(value) {
		logger.Debug("no value for image placeholder, keeping original content")
		m.metrics.RecordFallback()
		return m.fallback(node), nil
	}

	r := resolver.Resolver{
		GetImage: m.getImage,
		GetSize:  m.getSize,
		Strategy: strategy,
	}

	img, err := r.Image(ctx, value, ph.Key)
	if err != nil {
		return nil, err
	}
	if len(img) == 0 {
		logger.Debug("empty image buffer, keeping original content")
		m.metrics.RecordFallback()
		return m.fallback(node), nil
	}

	size, err := r.Size(ctx, img, value, ph.Key)
	if err != nil {
		return nil, err
	}

	hint, _ := value.(string)
	ext := sniff.Extension(img, hint)
	candidate := fmt.Sprintf("image_generated_%d.%s", m.imageNumber.Add(1), ext)

	rId, mediaPath, docPrId, err := m.register(partPath, candidate, img)
	if err != nil {
		return nil, err
	}

	markup, err := docx.BuildDrawing(docx.XmlImageData{
		DocPrId:  docPrId,
		Name:     path.Base(mediaPath),
		RefID:    rId,
		Cx:       docx.EMU(size.Width),
		Cy:       docx.EMU(size.Height),
		Centered: m.isCentered(ph),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to build drawing for '%s': %w", ph.Key, err)
	}

	m.metrics.RecordEmbedded(ext, len(img))
	logger.Debug("image embedded",
		"media", mediaPath,
		"rel_id", rId,
		"format", ext,
		"width", size.Width,
		"height", size.Height,
	)

	return &Fragment{Markup: markup}, nil
}

// register stores img in the package and allocates its relationship and
// drawing ids. Concurrent callers on one package are serialised.
func (m *ImageModule) register(partPath, candidate string, img []byte) (rId, mediaPath string, docPrId uint32, err error) {
	m.pkg.Lock()
	defer m.pkg.Unlock()

	rm, err := docx.NewRelManager(m.pkg, partPath)
	if err != nil {
		return "", "", 0, err
	}

	rId, mediaPath, err = rm.AddImage(candidate, img)
	if err != nil {
		return "", "", 0, err
	}

	docPrId, err = m.pkg.NextDocPrId()
	if err != nil {
		return "", "", 0, err
	}

	return rId, mediaPath, docPrId, nil
}

func (m *ImageModule) fallback(node *Node) *Fragment {
	return &Fragment{Markup: node.Raw}
}

// isFalsy reports values that mean "no image": nil, false, "" and zero
// numbers.
func isFalsy(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return !rv.Bool()
	case reflect.String:
		return rv.Len() == 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0 || math.IsNaN(rv.Float())
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}

	return false
}
