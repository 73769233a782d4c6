package docx

import (
	"fmt"
	"regexp"
	"strings"
)

// Level names the element a tag is expanded to.
type Level string

const (
	LevelRun       Level = "w:r"
	LevelParagraph Level = "w:p"
)

var (
	tagRe = regexp.MustCompile(`\{\{([\s\S]*?)\}\}`)

	openRe = map[Level]*regexp.Regexp{
		LevelRun:       regexp.MustCompile(`<w:r(?:\s[^>]*)?>`),
		LevelParagraph: regexp.MustCompile(`<w:p(?:\s[^>]*)?>`),
	}
)

// Tag is a "{{...}}" expression found in a part, with byte offsets into
// the XML it was found in.
type Tag struct {
	Raw   string
	Inner string
	Start int
	End   int
}

// FindTags returns every "{{...}}" expression of srcXml in document order.
func FindTags(srcXml string) []Tag {
	var tags []Tag
	for _, loc := range tagRe.FindAllStringSubmatchIndex(srcXml, -1) {
		tags = append(tags, Tag{
			Raw:   srcXml[loc[0]:loc[1]],
			Inner: srcXml[loc[2]:loc[3]],
			Start: loc[0],
			End:   loc[1],
		})
	}
	return tags
}

// ExpandToOne widens [start, end) to the innermost element of the given
// level that encloses it and returns the widened offsets.
func ExpandToOne(srcXml string, start, end int, level Level) (int, int, error) {
	re, ok := openRe[level]
	if !ok {
		return 0, 0, fmt.Errorf("unknown expansion level '%s'", level)
	}
	closing := "</" + string(level) + ">"

	openings := re.FindAllStringIndex(srcXml[:start], -1)
	if len(openings) == 0 {
		return 0, 0, fmt.Errorf("no <%s> encloses offset %d", level, start)
	}
	open := openings[len(openings)-1][0]

	if strings.Contains(srcXml[open:start], closing) {
		return 0, 0, fmt.Errorf("no <%s> encloses offset %d", level, start)
	}

	closeAt := strings.Index(srcXml[end:], closing)
	if closeAt < 0 {
		return 0, 0, fmt.Errorf("<%s> opened at %d is never closed", level, open)
	}

	return open, end + closeAt + len(closing), nil
}
