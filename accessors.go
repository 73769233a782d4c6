package docximage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/JJJJJJack/go-docx-image/internal/types"
)

// FileImageGetter reads the tag value as a file path, relative to dir
// unless absolute. A missing file means no image.
func FileImageGetter(dir string) ImageGetter {
	return func(tagValue any, tagName string) (any, error) {
		name, ok := tagValue.(string)
		if !ok {
			return nil, types.NewTypeMismatchError("FileImageGetter",
				fmt.Sprintf("value of '%s' is %T, want a file path", tagName, tagValue))
		}

		if !filepath.IsAbs(name) {
			name = filepath.Join(dir, name)
		}

		data, err := os.ReadFile(name)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("unable to read image file %s: %w", name, err)
		}

		return data, nil
	}
}

// MapImageGetter looks the tag value up in media, first as is and then by
// its base name. Values that are already image bytes are passed through.
func MapImageGetter(media map[string][]byte) ImageGetter {
	return func(tagValue any, tagName string) (any, error) {
		switch v := tagValue.(type) {
		case []byte:
			return v, nil
		case string:
			if data, ok := media[v]; ok {
				return data, nil
			}
			if data, ok := media[filepath.Base(v)]; ok {
				return data, nil
			}
			return nil, nil
		default:
			return nil, types.NewTypeMismatchError("MapImageGetter",
				fmt.Sprintf("value of '%s' is %T, want a media name", tagName, tagValue))
		}
	}
}

// DecodeSize reads the pixel size from the image header. PNG, JPEG, GIF,
// BMP, TIFF and WebP are understood.
func DecodeSize(img []byte, tagValue any, tagName string) (any, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("unable to decode size of image '%s': %w", tagName, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%s image '%s' has an empty size", format, tagName)
	}

	return image.Point{X: cfg.Width, Y: cfg.Height}, nil
}

// FixedSize returns every image at w x h pixels.
func FixedSize(w, h float64) SizeGetter {
	return func([]byte, any, string) (any, error) {
		return Size{Width: w, Height: h}, nil
	}
}

// MaxWidthSize decodes the image size and scales it down, keeping the
// aspect ratio, when it is wider than maxWidth pixels.
func MaxWidthSize(maxWidth float64) SizeGetter {
	return func(img []byte, tagValue any, tagName string) (any, error) {
		raw, err := DecodeSize(img, tagValue, tagName)
		if err != nil {
			return nil, err
		}

		p := raw.(image.Point)
		size := Size{Width: float64(p.X), Height: float64(p.Y)}
		if maxWidth > 0 && size.Width > maxWidth {
			size.Height = math.Round(size.Height * maxWidth / size.Width)
			size.Width = maxWidth
		}
		if size.Height < 1 {
			size.Height = 1
		}

		return size, nil
	}
}

// AsyncImageGetter runs getter in its own goroutine and returns a future.
// Use it with DocxTemplate.ApplyContext.
func AsyncImageGetter(getter ImageGetter) ImageGetter {
	return func(tagValue any, tagName string) (any, error) {
		return types.Go(func() (any, error) {
			return getter(tagValue, tagName)
		}), nil
	}
}

// AsyncSizeGetter is AsyncImageGetter for size accessors.
func AsyncSizeGetter(getter SizeGetter) SizeGetter {
	return func(img []byte, tagValue any, tagName string) (any, error) {
		return types.Go(func() (any, error) {
			return getter(img, tagValue, tagName)
		}), nil
	}
}
