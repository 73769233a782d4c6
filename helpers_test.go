package docximage

import "regexp"

var mediaRe = regexp.MustCompile(`^word/media/`)
