package docximage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JJJJJJack/go-docx-image/internal/docx"
	"github.com/JJJJJJack/go-docx-image/internal/testutil"
	"github.com/JJJJJJack/go-docx-image/internal/types"
)

func newTestModule(t *testing.T, opts ImageOptions) *ImageModule {
	t.Helper()

	if opts.GetImage == nil {
		opts.GetImage = MapImageGetter(map[string][]byte{"logo.png": testutil.PNG(t, 450, 300)})
	}
	if opts.GetSize == nil {
		opts.GetSize = DecodeSize
	}

	m, err := NewImageModule(opts)
	require.NoError(t, err)
	return m
}

// wire plays the host role for one part: it opens a package, runs the
// context hooks and builds the expanded node of the first tag.
func wire(t *testing.T, m *ImageModule, body string) (*Package, *Node) {
	t.Helper()

	pkg, err := docx.OpenPackage(testutil.Docx(t, body))
	require.NoError(t, err)

	m.OptionsTransformer(HostOptions{FileTypeConfig: DocxFileTypeConfig()}, pkg)
	m.Set(SetContext{Package: pkg})

	content, err := pkg.Read("word/document.xml")
	require.NoError(t, err)

	tags := docx.FindTags(string(content))
	require.NotEmpty(t, tags)

	node := &Node{
		Module:      ModuleName,
		Tag:         tags[0].Inner,
		Placeholder: m.Parse(tags[0].Inner),
		Start:       tags[0].Start,
		End:         tags[0].End,
		Raw:         tags[0].Raw,
	}
	require.NoError(t, m.Postparse(node, partExpander{xml: string(content)}))

	return pkg, node
}

func TestNewImageModule_RequiresAccessors(t *testing.T) {
	_, err := NewImageModule(ImageOptions{GetSize: DecodeSize})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewImageModule(ImageOptions{GetImage: MapImageGetter(nil)})
	assert.ErrorIs(t, err, ErrConfiguration)

	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "NewImageModule", cfgErr.Op)
}

func TestImageModule_Parse(t *testing.T) {
	m := newTestModule(t, ImageOptions{})

	tests := []struct {
		text string
		want *Placeholder
	}{
		{"%logo", &Placeholder{Key: "logo"}},
		{"%%logo", &Placeholder{Key: "logo", Centered: true}},
		{" %%company.logo ", &Placeholder{Key: "company.logo", Centered: true}},
		{"%\u200blogo\ufeff", &Placeholder{Key: "logo"}},
		{"\u2060%%lo\u200dgo", &Placeholder{Key: "logo", Centered: true}},
		{".Name", nil},
		{"logo", nil},
		{"%", nil},
		{"%%  ", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.text), func(t *testing.T) {
			assert.Equal(t, tt.want, m.Parse(tt.text))
		})
	}
}

func TestImageModule_Name(t *testing.T) {
	m := newTestModule(t, ImageOptions{})
	assert.Equal(t, "docx-image", m.Name())
}

func TestImageModule_PostparseLevels(t *testing.T) {
	body := testutil.Paragraph("{{%logo}}")

	t.Run("inline placeholder expands to its run", func(t *testing.T) {
		m := newTestModule(t, ImageOptions{})
		_, node := wire(t, m, body)

		assert.Equal(t, LevelRun, node.Level)
		assert.True(t, strings.HasPrefix(node.Raw, "<w:r>"))
		assert.True(t, strings.HasSuffix(node.Raw, "</w:r>"))
	})

	t.Run("instance default centers inline placeholders", func(t *testing.T) {
		m := newTestModule(t, ImageOptions{Centered: true})
		_, node := wire(t, m, body)

		assert.Equal(t, LevelParagraph, node.Level)
		assert.Equal(t, testutil.Paragraph("{{%logo}}"), node.Raw)
	})

	t.Run("centered placeholder expands to its paragraph", func(t *testing.T) {
		m := newTestModule(t, ImageOptions{})
		_, node := wire(t, m, testutil.Paragraph("{{%%logo}}"))

		assert.Equal(t, LevelParagraph, node.Level)
	})

	t.Run("nodes of other modules are ignored", func(t *testing.T) {
		m := newTestModule(t, ImageOptions{})
		node := &Node{Module: "other"}
		assert.NoError(t, m.Postparse(node, partExpander{}))
		assert.Empty(t, node.Level)
	})
}

// Scenario A: a centered 450x300 PNG.
func TestImageModule_RenderCenteredPNG(t *testing.T) {
	m := newTestModule(t, ImageOptions{})
	pkg, node := wire(t, m, testutil.Paragraph("{{%%logo}}"))

	fragment, err := m.Render(node, RenderContext{
		Scope:    NewScope(map[string]any{"logo": "logo.png"}),
		PartPath: "word/document.xml",
	})
	require.NoError(t, err)
	require.NotNil(t, fragment)
	assert.Empty(t, fragment.Errors)

	markup := fragment.Markup
	assert.True(t, strings.HasPrefix(markup, `<w:p><w:pPr><w:jc w:val="center" /></w:pPr><w:r>`), markup)
	assert.Contains(t, markup, `<wp:extent cx="4286250" cy="2857500" />`)
	assert.Contains(t, markup, `<a:blip r:embed="rId4" />`)
	assert.Contains(t, markup, `<wp:docPr id="1" name="image_generated_1.png" />`)

	assert.True(t, pkg.Has("word/media/image_generated_1.png"))

	rels, err := pkg.Relationships("word/_rels/document.xml.rels")
	require.NoError(t, err)
	rel, ok := rels.Find("rId4")
	require.True(t, ok)
	assert.Equal(t, docx.ImageRelationship, rel.Type)
	assert.Equal(t, "media/image_generated_1.png", rel.Target)

	ct, err := pkg.ContentTypes()
	require.NoError(t, err)
	mime, ok := ct.DefaultFor("png")
	assert.True(t, ok)
	assert.Equal(t, "image/png", mime)
}

// Scenario B: a falsy value keeps the original content and writes nothing.
func TestImageModule_FalsyValuesFallBack(t *testing.T) {
	values := map[string]any{
		"nil":   nil,
		"false": false,
		"empty": "",
		"zero":  0,
		"zerof": 0.0,
	}

	for _, key := range []string{"nil", "false", "empty", "zero", "zerof", "missing"} {
		t.Run(key, func(t *testing.T) {
			m := newTestModule(t, ImageOptions{})
			pkg, node := wire(t, m, testutil.Paragraph("{{%"+key+"}}"))

			fragment, err := m.Render(node, RenderContext{Scope: NewScope(values)})
			require.NoError(t, err)
			require.NotNil(t, fragment)

			assert.Equal(t, node.Raw, fragment.Markup)
			assert.Contains(t, fragment.Markup, "{{%"+key+"}}")
			assert.Empty(t, pkg.Match(mediaRe))
		})
	}
}

func TestImageModule_EmptyBufferFallsBack(t *testing.T) {
	m := newTestModule(t, ImageOptions{
		GetImage: func(any, string) (any, error) { return []byte{}, nil },
	})
	pkg, node := wire(t, m, testutil.Paragraph("{{%logo}}"))

	fragment, err := m.Render(node, RenderContext{Scope: NewScope(map[string]any{"logo": "x.png"})})
	require.NoError(t, err)
	assert.Equal(t, node.Raw, fragment.Markup)
	assert.Empty(t, pkg.Match(mediaRe))
}

// Scenario C: a future on the synchronous path fails before any write.
func TestImageModule_RenderRejectsFutures(t *testing.T) {
	png := testutil.PNG(t, 10, 10)

	tests := map[string]ImageOptions{
		"image future": {
			GetImage: func(any, string) (any, error) { return types.Resolved[any](png), nil },
		},
		"size future": {
			GetImage: func(any, string) (any, error) { return png, nil },
			GetSize:  func([]byte, any, string) (any, error) { return types.Resolved(Size{Width: 1, Height: 1}), nil },
		},
	}

	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			m := newTestModule(t, opts)
			pkg, node := wire(t, m, testutil.Paragraph("{{%logo}}"))

			_, err := m.Render(node, RenderContext{Scope: NewScope(map[string]any{"logo": "logo.png"})})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTypeMismatch)

			var mismatch *TypeMismatchError
			assert.ErrorAs(t, err, &mismatch)

			assert.Empty(t, pkg.Match(mediaRe))
			rels, err := pkg.Relationships("word/_rels/document.xml.rels")
			require.NoError(t, err)
			assert.Len(t, rels.Relationships, 2)
		})
	}
}

func TestImageModule_ResolveAwaitsFutures(t *testing.T) {
	png := testutil.PNG(t, 20, 10)
	m := newTestModule(t, ImageOptions{
		GetImage: AsyncImageGetter(MapImageGetter(map[string][]byte{"a.png": png})),
		GetSize:  AsyncSizeGetter(DecodeSize),
	})
	pkg, node := wire(t, m, testutil.Paragraph("{{%logo}}"))

	fragment, err := m.Resolve(context.Background(), node, RenderContext{Scope: NewScope(map[string]any{"logo": "a.png"})})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(fragment.Markup, "<w:r>"))
	assert.Contains(t, fragment.Markup, fmt.Sprintf(`cx="%d" cy="%d"`, 20*9525, 10*9525))
	assert.True(t, pkg.Has("word/media/image_generated_1.png"))
}

func TestImageModule_ResolveHonoursContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	m := newTestModule(t, ImageOptions{
		GetImage: func(any, string) (any, error) {
			return types.Go(func() (any, error) {
				<-block
				return nil, nil
			}), nil
		},
	})
	_, node := wire(t, m, testutil.Paragraph("{{%logo}}"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Resolve(ctx, node, RenderContext{Scope: NewScope(map[string]any{"logo": "a.png"})})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImageModule_AccessorErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	m := newTestModule(t, ImageOptions{
		GetImage: func(any, string) (any, error) { return nil, boom },
	})
	_, node := wire(t, m, testutil.Paragraph("{{%logo}}"))

	_, err := m.Render(node, RenderContext{Scope: NewScope(map[string]any{"logo": "a.png"})})
	assert.ErrorIs(t, err, boom)
}

func TestImageModule_RenderBeforeContext(t *testing.T) {
	node := &Node{Module: ModuleName, Tag: "%logo", Placeholder: &Placeholder{Key: "logo"}}
	rc := RenderContext{Scope: NewScope(map[string]any{"logo": "logo.png"})}

	t.Run("without Set", func(t *testing.T) {
		m := newTestModule(t, ImageOptions{})

		_, err := m.Render(node, rc)
		assert.ErrorIs(t, err, ErrConfiguration)

		_, err = m.Resolve(context.Background(), node, rc)
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("without OptionsTransformer", func(t *testing.T) {
		m := newTestModule(t, ImageOptions{})
		pkg, err := docx.OpenPackage(testutil.Docx(t, ""))
		require.NoError(t, err)
		m.Set(SetContext{Package: pkg})

		_, err = m.Render(node, rc)
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}

func TestImageModule_IgnoresForeignNodes(t *testing.T) {
	m := newTestModule(t, ImageOptions{})

	fragment, err := m.Render(&Node{Module: "other"}, RenderContext{})
	assert.NoError(t, err)
	assert.Nil(t, fragment)

	fragment, err = m.Resolve(context.Background(), nil, RenderContext{})
	assert.NoError(t, err)
	assert.Nil(t, fragment)
}

func TestImageModule_OptionsTransformerTracksXmlFiles(t *testing.T) {
	m := newTestModule(t, ImageOptions{})
	pkg, err := docx.OpenPackage(testutil.Docx(t, ""))
	require.NoError(t, err)

	opts := m.OptionsTransformer(HostOptions{
		FileTypeConfig: DocxFileTypeConfig(),
		XMLFiles:       []string{"word/document.xml", "_rels/.rels"},
	}, pkg)

	assert.ElementsMatch(t, []string{
		"word/document.xml",
		"_rels/.rels",
		"word/_rels/document.xml.rels",
		"[Content_Types].xml",
	}, opts.XMLFiles)
}

func TestImageModule_MissingManifestIsConfigurationError(t *testing.T) {
	m := newTestModule(t, ImageOptions{})

	data := testutil.Zip(t, map[string]string{
		"word/document.xml": testutil.Document(testutil.Paragraph("{{%logo}}")),
	})
	pkg, err := docx.OpenPackage(data)
	require.NoError(t, err)
	m.OptionsTransformer(HostOptions{FileTypeConfig: DocxFileTypeConfig()}, pkg)

	content, err := pkg.Read("word/document.xml")
	require.NoError(t, err)
	tag := docx.FindTags(string(content))[0]
	node := &Node{Module: ModuleName, Tag: tag.Inner, Placeholder: m.Parse(tag.Inner), Start: tag.Start, End: tag.End}
	require.NoError(t, m.Postparse(node, partExpander{xml: string(content)}))

	_, err = m.Render(node, RenderContext{Scope: NewScope(map[string]any{"logo": "logo.png"})})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Empty(t, pkg.Match(mediaRe))
}

func TestIsFalsy(t *testing.T) {
	var nilMap map[string]any

	for _, v := range []any{nil, false, "", 0, int64(0), uint8(0), 0.0, float32(0), nilMap} {
		assert.True(t, isFalsy(v), "%#v", v)
	}
	for _, v := range []any{true, "a", 1, -1, 0.5, []byte{1}, map[string]any{}} {
		assert.False(t, isFalsy(v), "%#v", v)
	}
}
