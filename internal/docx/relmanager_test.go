package docx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JJJJJJack/go-docx-image/internal/testutil"
	"github.com/JJJJJJack/go-docx-image/internal/types"
)

func TestRelManager_AddImageAllocatesMonotonicIds(t *testing.T) {
	pkg := openTestPackage(t, "")

	m, err := NewRelManager(pkg, "word/document.xml")
	require.NoError(t, err)
	assert.Equal(t, "word/_rels/document.xml.rels", m.RelsPath())

	for i := 0; i < 5; i++ {
		rId, mediaPath, err := m.AddImage(fmt.Sprintf("image_generated_%d.png", i+1), []byte{byte(i)})
		require.NoError(t, err)

		assert.Equal(t, fmt.Sprintf("rId%d", i+4), rId)
		assert.Equal(t, fmt.Sprintf("word/media/image_generated_%d.png", i+1), mediaPath)
	}

	out, err := pkg.Bytes()
	require.NoError(t, err)
	parts := testutil.Parts(t, out)

	rels, err := ParseRelationships([]byte(parts["word/_rels/document.xml.rels"]))
	require.NoError(t, err)
	require.Len(t, rels.Relationships, 7)

	rel, ok := rels.Find("rId8")
	require.True(t, ok)
	assert.Equal(t, ImageRelationship, rel.Type)
	assert.Equal(t, "media/image_generated_5.png", rel.Target)

	ct, err := ParseContentTypes([]byte(parts[ContentTypesPath]))
	require.NoError(t, err)
	mime, ok := ct.DefaultFor("png")
	assert.True(t, ok)
	assert.Equal(t, "image/png", mime)
	assert.Len(t, ct.Defaults, 3)

	assert.Equal(t, string([]byte{4}), parts["word/media/image_generated_5.png"])
}

func TestRelManager_AddImageAvoidsNameCollisions(t *testing.T) {
	pkg := openTestPackage(t, "")
	pkg.Write("word/media/logo.png", []byte("existing"))

	m, err := NewRelManager(pkg, "word/document.xml")
	require.NoError(t, err)

	_, first, err := m.AddImage("logo.png", []byte("new"))
	require.NoError(t, err)
	_, second, err := m.AddImage("logo.png", []byte("newer"))
	require.NoError(t, err)

	assert.Equal(t, "word/media/logo(1).png", first)
	assert.Equal(t, "word/media/logo(2).png", second)

	existing, err := pkg.Read("word/media/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "existing", string(existing))
}

func TestRelManager_AddImageRegistersExtensionsLowercase(t *testing.T) {
	pkg := openTestPackage(t, "")

	m, err := NewRelManager(pkg, "word/document.xml")
	require.NoError(t, err)

	_, _, err = m.AddImage("photo.JPG", []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)
	_, _, err = m.AddImage("other.jpg", []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)

	ct, err := pkg.ContentTypes()
	require.NoError(t, err)

	count := 0
	for _, d := range ct.Defaults {
		if d.Extension == "jpg" {
			count++
			assert.Equal(t, "image/jpeg", d.ContentType)
		}
	}
	assert.Equal(t, 1, count)
}

func TestRelManager_MissingManifestWritesNothing(t *testing.T) {
	data := testutil.Zip(t, map[string]string{
		"word/document.xml": testutil.Document(""),
	})
	pkg, err := OpenPackage(data)
	require.NoError(t, err)

	m, err := NewRelManager(pkg, "word/document.xml")
	require.NoError(t, err)

	_, _, err = m.AddImage("logo.png", []byte("png"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	var cfgErr *types.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	assert.False(t, pkg.Has("word/media/logo.png"))
	rels, err := pkg.Relationships(m.RelsPath())
	require.NoError(t, err)
	assert.Empty(t, rels.Relationships)
}

func TestRelManager_HeaderRelsCreatedLazily(t *testing.T) {
	data := testutil.Zip(t, map[string]string{
		ContentTypesPath:    testutil.ContentTypesXml,
		"word/document.xml": testutil.Document(""),
		"word/header1.xml":  "<w:hdr/>",
	})
	pkg, err := OpenPackage(data)
	require.NoError(t, err)

	m, err := NewRelManager(pkg, "word/header1.xml")
	require.NoError(t, err)

	rId, _, err := m.AddImage("a.gif", []byte("GIF89a"))
	require.NoError(t, err)
	assert.Equal(t, "rId1", rId)

	out, err := pkg.Bytes()
	require.NoError(t, err)

	parts := testutil.Parts(t, out)
	require.Contains(t, parts, "word/_rels/header1.xml.rels")
	assert.Contains(t, parts["word/_rels/header1.xml.rels"], `Target="media/a.gif"`)
	assert.Contains(t, parts[ContentTypesPath], `Extension="gif"`)
}
