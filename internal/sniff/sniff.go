// Package sniff classifies raster image blobs from their leading bytes.
package sniff

import (
	"bytes"
	"path"
	"regexp"
	"strings"
)

const (
	PNG  = "png"
	JPG  = "jpg"
	GIF  = "gif"
	BMP  = "bmp"
	TIFF = "tiff"
	WEBP = "webp"
)

// Magic bytes for format detection
var (
	magicPNG    = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	magicJPEG   = []byte{0xFF, 0xD8, 0xFF}
	magicGIF87a = []byte("GIF87a")
	magicGIF89a = []byte("GIF89a")
	magicBMP    = []byte{0x42, 0x4D}
	magicTIFFLE = []byte{0x49, 0x49, 0x2A, 0x00}
	magicTIFFBE = []byte{0x4D, 0x4D, 0x00, 0x2A}
	magicRIFF   = []byte("RIFF")
	magicWEBP   = []byte("WEBP")
)

var trailingExtRe = regexp.MustCompile(`\.([A-Za-z0-9]+)$`)

// Detect returns the extension matching data's signature, or "" when no
// known signature matches. File names are never consulted.
func Detect(data []byte) string {
	switch {
	case bytes.HasPrefix(data, magicPNG):
		return PNG
	case bytes.HasPrefix(data, magicJPEG):
		return JPG
	case bytes.HasPrefix(data, magicGIF87a), bytes.HasPrefix(data, magicGIF89a):
		return GIF
	case bytes.HasPrefix(data, magicTIFFLE), bytes.HasPrefix(data, magicTIFFBE):
		return TIFF
	case len(data) >= 12 && bytes.HasPrefix(data, magicRIFF) && bytes.Equal(data[8:12], magicWEBP):
		return WEBP
	case bytes.HasPrefix(data, magicBMP):
		return BMP
	}

	return ""
}

// FromName guesses an extension from the trailing ".ext" of name.
func FromName(name string) string {
	m := trailingExtRe.FindStringSubmatch(path.Base(strings.TrimSpace(name)))
	if len(m) < 2 {
		return ""
	}

	return strings.ToLower(m[1])
}

// Extension picks the extension to store data under: the sniffed format,
// then the hint's trailing extension, then png.
func Extension(data []byte, hint string) string {
	if ext := Detect(data); ext != "" {
		return ext
	}

	if ext := FromName(hint); ext != "" {
		return ext
	}

	return PNG
}
