package docx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JJJJJJack/go-docx-image/internal/testutil"
)

func TestContentTypes_AddDefaultUniqueIsIdempotent(t *testing.T) {
	ct, err := ParseContentTypes([]byte(testutil.ContentTypesXml))
	require.NoError(t, err)
	before := len(ct.Defaults)

	assert.True(t, ct.AddDefaultUnique("png", "image/png"))
	assert.False(t, ct.AddDefaultUnique("png", "image/png"))
	assert.False(t, ct.AddDefaultUnique("PNG", "image/png"), "extensions compare case-insensitively")
	assert.False(t, ct.AddDefaultUnique("XML", "text/xml"))

	count := 0
	for _, d := range ct.Defaults {
		if d.Extension == "png" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Len(t, ct.Defaults, before+1)

	mime, ok := ct.DefaultFor("Png")
	assert.True(t, ok)
	assert.Equal(t, "image/png", mime)
}

func TestContentTypes_ToXmlKeepsOverrides(t *testing.T) {
	ct, err := ParseContentTypes([]byte(testutil.ContentTypesXml))
	require.NoError(t, err)
	ct.AddDefaultUnique("jpg", "image/jpeg")

	out, err := ct.ToXml()
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	assert.Contains(t, s, `<Default Extension="jpg" ContentType="image/jpeg" />`)
	assert.Contains(t, s, `<Override PartName="/word/document.xml"`)
	assert.NotContains(t, s, "</Default>")

	reparsed, err := ParseContentTypes(out)
	require.NoError(t, err)
	assert.Equal(t, ct.Defaults, reparsed.Defaults)
	assert.Equal(t, ct.Overrides, reparsed.Overrides)
}

func TestMimeType(t *testing.T) {
	tests := map[string]string{
		"png":  "image/png",
		"JPG":  "image/jpeg",
		"jpeg": "image/jpeg",
		"gif":  "image/gif",
		"bmp":  "image/bmp",
		"tiff": "image/tiff",
		"webp": "image/webp",
		"svg":  "image/svg+xml",
		"heic": "image/heic",
	}

	for ext, want := range tests {
		assert.Equal(t, want, MimeType(ext), ext)
	}
}
