package docx

import (
	"path"
	"strings"

	"github.com/JJJJJJack/go-docx-image/internal/file"
)

// MediaDir is where every embedded media part is stored.
const MediaDir = "word/media"

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
}

// MimeType returns the content type for a lowercase extension, falling
// back to image/<ext>.
func MimeType(ext string) string {
	ext = strings.ToLower(ext)
	if mime, ok := mimeTypes[ext]; ok {
		return mime
	}
	return "image/" + ext
}

// freeMediaPath returns a media part path for name that no part uses yet.
func (p *Package) freeMediaPath(name string) (string, error) {
	return file.FirstFree(path.Join(MediaDir, path.Base(name)), p.Has)
}
