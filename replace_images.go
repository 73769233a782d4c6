package docximage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/JJJJJJack/go-docx-image/internal/docx"
	"github.com/JJJJJJack/go-docx-image/internal/resolver"
	"github.com/JJJJJJack/go-docx-image/internal/sniff"
)

var (
	drawingBlockRe = regexp.MustCompile(`(?s)<w:drawing(?:\s[^>]*)?>.*?</w:drawing>`)
	replaceImageRe = regexp.MustCompile(`\[\[REPLACE_IMAGE:([^\]]+)\]\]`)
	blipEmbedRe    = regexp.MustCompile(`(<a:blip\b[^>]*?\br:embed=")[^"]*(")`)
)

// SetImageReplacer enables picture swapping: an existing drawing carrying
// "[[REPLACE_IMAGE:name]]" (usually in its alt text) gets the image that
// getImage returns for name, keeping its size, position and styling.
// The marker is always removed; when getImage has no image for name the
// original picture stays.
func (dt *DocxTemplate) SetImageReplacer(getImage ImageGetter) {
	dt.imageReplacer = getImage
}

// replaceImages swaps the pictures of the marked drawings of one part.
func (dt *DocxTemplate) replaceImages(ctx context.Context, pkg *Package, partPath, srcXml string, async bool) (string, error) {
	if dt.imageReplacer == nil {
		return srcXml, nil
	}

	r := resolver.Resolver{GetImage: dt.imageReplacer, Strategy: resolver.Immediate}
	if async {
		r.Strategy = resolver.Suspend
	}

	var replaceErr error
	replaced := 0

	output := drawingBlockRe.ReplaceAllStringFunc(srcXml, func(block string) string {
		match := replaceImageRe.FindStringSubmatch(block)
		if match == nil || replaceErr != nil {
			return block
		}
		name := strings.TrimSpace(match[1])
		block = replaceImageRe.ReplaceAllString(block, "")

		img, err := r.Image(ctx, name, name)
		if err != nil {
			replaceErr = fmt.Errorf("unable to get replacement image '%s': %w", name, err)
			return block
		}
		if len(img) == 0 {
			dt.logger.Debug("no replacement image, keeping the original picture", "part", partPath, "image", name)
			return block
		}

		ext := sniff.Extension(img, name)
		candidate := strings.TrimSuffix(path.Base(name), path.Ext(name)) + "." + ext

		rId, err := addReplacementImage(pkg, partPath, candidate, img)
		if err != nil {
			replaceErr = fmt.Errorf("unable to add replacement image '%s': %w", name, err)
			return block
		}

		replaced++
		return blipEmbedRe.ReplaceAllString(block, "${1}"+rId+"${2}")
	})
	if replaceErr != nil {
		return "", replaceErr
	}

	if replaced > 0 {
		dt.logger.Debug("pictures replaced", "part", partPath, "count", replaced)
	}

	return output, nil
}

func addReplacementImage(pkg *Package, partPath, candidate string, img []byte) (string, error) {
	pkg.Lock()
	defer pkg.Unlock()

	rm, err := docx.NewRelManager(pkg, partPath)
	if err != nil {
		return "", err
	}

	rId, _, err := rm.AddImage(candidate, img)
	return rId, err
}
