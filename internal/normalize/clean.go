package normalize

import (
	"regexp"
	"strings"
)

var (
	reSignatureDelimiter = regexp.MustCompile(`^(--|---|===)$`)
	reOnWrote            = regexp.MustCompile(`(?i)^on\s.+\swrote:$`)
	reHeaderEcho         = regexp.MustCompile(`(?i)^(from|sent):`)
	reToEcho             = regexp.MustCompile(`(?i)^to:`)
	reBareURL            = regexp.MustCompile(`(?i)^(https?://|www\.)\S+$`)
	reBareEmail          = regexp.MustCompile(`^<?[\w.+'-]+@[\w-]+(\.[\w-]+)+>?$`)

	reSignatureOpener = regexp.MustCompile(`(?i)^(?:(?:best regards|kind regards|warm regards|best wishes|regards|sincerely|cheers|thanks|thank you|many thanks|best)[\s,.!]*$|sent from\b)`)

	reImportantAmount  = regexp.MustCompile(`(?i)\$\s?\d|\d(\.\d+)?\s?(usd|dollars)\b`)
	reImportantDate    = regexp.MustCompile(`(?i)\b\d{1,2}/\d{1,2}(/\d{2,4})?\b|\b\d{4}-\d{2}-\d{2}\b|\b(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2}\b`)
	reImportantKeyword = regexp.MustCompile(`(?i)\b(deadline|meeting|follow[ -]?up|due)\b`)

	reQuoteBlock  = regexp.MustCompile(`(?is)<blockquote\b[^>]*>.*?</blockquote>`)
	reStrayQuote  = regexp.MustCompile(`(?i)</?blockquote\b[^>]*>`)
	reGmailQuote  = regexp.MustCompile(`(?i)<div[^>]*class="[^"]*gmail_quote[^"]*"[^>]*>`)
	reSegmentEnd  = regexp.MustCompile(`(?i)<br\s*/?>|</p\s*>|</div\s*>|</li\s*>|\n`)
	reExcessBlank = regexp.MustCompile(`\n{4,}`)
)

// IsSignatureOpener reports whether a line starts a sign-off block.
func IsSignatureOpener(line string) bool {
	return reSignatureOpener.MatchString(strings.TrimSpace(line))
}

// IsImportant reports whether a line carries content worth keeping even
// inside a signature: an amount, a date-like token, or a scheduling keyword.
func IsImportant(line string) bool {
	return reImportantAmount.MatchString(line) ||
		reImportantDate.MatchString(line) ||
		reImportantKeyword.MatchString(line)
}

// lineFilter applies the structural removal rules one line at a time. The
// same rules drive the plain-text and HTML-preserving variants.
type lineFilter struct {
	seenTo      bool
	inSignature bool
	truncated   bool
}

func (f *lineFilter) keep(line string) bool {
	if f.truncated {
		return false
	}
	s := strings.TrimSpace(line)
	switch {
	case s == "":
		return true
	case reSignatureDelimiter.MatchString(s):
		f.truncated = true
		return false
	case strings.HasPrefix(s, ">"):
		return false
	case reOnWrote.MatchString(s):
		return false
	case reHeaderEcho.MatchString(s):
		return false
	case reToEcho.MatchString(s):
		if f.seenTo {
			return false
		}
		f.seenTo = true
		return true
	}

	if IsSignatureOpener(s) {
		f.inSignature = true
		return IsImportant(s)
	}
	if f.inSignature {
		return IsImportant(s)
	}
	if reBareURL.MatchString(s) || reBareEmail.MatchString(s) {
		return false
	}
	return true
}

// CleanContent returns the normalized plain text of a message. When text is
// blank it is derived from html. Never fails; empty input yields "".
func CleanContent(text, html string) string {
	if strings.TrimSpace(text) == "" {
		text = HTMLToText(html)
	}
	if strings.TrimSpace(text) == "" {
		return ""
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var f lineFilter
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if f.keep(line) {
			kept = append(kept, strings.TrimRight(line, " \t"))
		}
	}

	out := strings.Join(kept, "\n")
	out = reExcessBlank.ReplaceAllString(out, "\n\n\n")
	return strings.TrimSpace(out)
}

// CleanHTML applies the same structural removals as CleanContent to an HTML
// body while keeping its markup, for note rendering.
func CleanHTML(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	s := strings.ReplaceAll(html, "\r\n", "\n")
	if loc := reGmailQuote.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = reQuoteBlock.ReplaceAllString(s, "")
	s = reStrayQuote.ReplaceAllString(s, "")

	var f lineFilter
	var b strings.Builder
	for _, seg := range splitSegments(s) {
		if f.keep(HTMLToText(reSegmentEnd.ReplaceAllString(seg, ""))) {
			b.WriteString(seg)
		}
	}
	return strings.TrimSpace(b.String())
}

// splitSegments cuts html after every line-ending tag or newline, keeping the
// delimiter with the segment it closes.
func splitSegments(html string) []string {
	var segs []string
	start := 0
	for _, loc := range reSegmentEnd.FindAllStringIndex(html, -1) {
		segs = append(segs, html[start:loc[1]])
		start = loc[1]
	}
	if start < len(html) {
		segs = append(segs, html[start:])
	}
	return segs
}
