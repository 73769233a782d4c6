package docximage

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Handler takes the content of a file and returns the modified
// content that will replace it.
type Handler func(content string) (string, error)

// HandlersMap maps filenames to a [Handler] functions chain. Each file content
// will be modified sequentially by each function in the []Handler slice.
// The final output will overwrite the original.
type HandlersMap map[string][]Handler

// run applies the handlers registered for every part of pkg. Parts without
// handlers, and handlers for parts missing from pkg, are skipped.
func (hm HandlersMap) run(pkg *Package, stage string) error {
	for filename, handlers := range hm {
		if len(handlers) == 0 || !pkg.Has(filename) {
			continue
		}

		fileContent, err := pkg.Read(filename)
		if err != nil {
			return fmt.Errorf("unable to read file '%s' for %s-processing: %w", filename, stage, err)
		}

		output := string(fileContent)
		for _, handler := range handlers {
			output, err = handler(output)
			if err != nil {
				return fmt.Errorf("error %s processing file '%s': %w", stage, filename, err)
			}
		}

		pkg.Write(filename, []byte(output))
	}

	return nil
}

var (
	tableRowTagRe   = regexp.MustCompile(`<w:tr(?:\s[^>]*)?>|<w:tr\s*/>|</w:tr>`)
	textContentRe   = regexp.MustCompile(`(?is)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	visualContentRe = regexp.MustCompile(`(?i)<w:drawing\b|<w:pict\b|<mc:AlternateContent\b|<v:shape\b|<wps:spPr\b`)
)

// RemoveEmptyTableRows is a post-processing [Handler] dropping table rows
// with neither visible text nor drawings, nested tables included. Tags left
// unrendered, like an image placeholder without a value, count as text and
// keep their row.
func RemoveEmptyTableRows(content string) (string, error) {
	var empty [][2]int
	var open []int

	for _, loc := range tableRowTagRe.FindAllStringIndex(content, -1) {
		tag := content[loc[0]:loc[1]]
		switch {
		case strings.HasSuffix(tag, "/>"):
			empty = append(empty, [2]int{loc[0], loc[1]})
		case strings.HasPrefix(tag, "</"):
			if len(open) == 0 {
				return "", fmt.Errorf("unbalanced </w:tr> at offset %d", loc[0])
			}
			start := open[len(open)-1]
			open = open[:len(open)-1]

			if isRowEmpty(content[start:loc[1]]) {
				empty = append(empty, [2]int{start, loc[1]})
			}
		default:
			open = append(open, loc[0])
		}
	}
	if len(open) != 0 {
		return "", fmt.Errorf("<w:tr> at offset %d is never closed", open[len(open)-1])
	}

	if len(empty) == 0 {
		return content, nil
	}

	// inner rows close first; sorting by start puts an outer row before
	// the rows it contains
	slices.SortFunc(empty, func(a, b [2]int) int {
		return a[0] - b[0]
	})

	output := strings.Builder{}
	output.Grow(len(content))

	last := 0
	for _, span := range empty {
		if span[0] < last {
			continue
		}
		output.WriteString(content[last:span[0]])
		last = span[1]
	}
	output.WriteString(content[last:])

	return output.String(), nil
}

func isRowEmpty(row string) bool {
	if visualContentRe.MatchString(row) {
		return false
	}

	for _, m := range textContentRe.FindAllStringSubmatch(row, -1) {
		if strings.TrimSpace(m[1]) != "" {
			return false
		}
	}
	return true
}
