// Package normalize turns raw email bodies and subjects into the clean text
// the rest of the pipeline works on.
package normalize

import (
	"regexp"
	"strings"
)

var (
	reScriptStyle = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)>`)
	reBreak       = regexp.MustCompile(`(?i)<br\s*/?>`)
	reBlockClose  = regexp.MustCompile(`(?i)</(p|div|li|tr|h[1-6]|table|ul|ol|blockquote)\s*>`)
	reTag         = regexp.MustCompile(`<[^>]*>`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&amp;", "&",
	)
)

// HTMLToText derives plain text from an HTML body. Block-level closing tags
// and <br> become newlines; only the six common entities are decoded.
func HTMLToText(html string) string {
	if html == "" {
		return ""
	}
	s := strings.ReplaceAll(html, "\r\n", "\n")
	s = reScriptStyle.ReplaceAllString(s, "")
	s = reBreak.ReplaceAllString(s, "\n")
	s = reBlockClose.ReplaceAllString(s, "\n")
	s = reTag.ReplaceAllString(s, "")
	return entityReplacer.Replace(s)
}
