package docx

import (
	"regexp"
	"strings"
)

var (
	splitOpenRe  = regexp.MustCompile(`\{([^\}]*?)\{`)
	splitCloseRe = regexp.MustCompile(`\}([^\{]*?)\}`)
	expressionRe = regexp.MustCompile(`\{\{[\s\S]*?\}\}`)
	xmlTagRe     = regexp.MustCompile(`(<\s*\/?[\w-:.]+(\s+[^>]*?)?[\s\/]*>)`)

	// single pass, so "&amp;lt;" becomes "&lt;" and not "<"
	entityReplacer = strings.NewReplacer(
		"&quot;", `"`, "&#34;", `"`,
		"&apos;", "'", "&#39;", "'",
		"&lt;", "<", "&#60;", "<",
		"&gt;", ">", "&#62;", ">",
		"&amp;", "&", "&#38;", "&",
	)
)

// PatchXml repairs tags Word broke apart while editing. Spell-check marks,
// revision ids or formatting changes can end a run in the middle of
// "{{%logo}}"; afterwards each tag is plain text inside the run where it
// starts, with XML entities in it decoded.
func PatchXml(srcXml string) string {
	srcXml = splitOpenRe.ReplaceAllString(srcXml, "{{")
	srcXml = splitCloseRe.ReplaceAllString(srcXml, "}}")

	return expressionRe.ReplaceAllStringFunc(srcXml, cleanExpression)
}

// cleanExpression drops the markup inside one "{{...}}" expression.
func cleanExpression(expression string) string {
	return entityReplacer.Replace(xmlTagRe.ReplaceAllString(expression, ""))
}
