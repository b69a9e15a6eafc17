// Package extract pulls dates, amounts, action items and contact
// identifiers out of normalized message text.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/intake-cli/internal/model"
)

// MinActionItem is the shortest action item kept.
const MinActionItem = 6

// Extract scans subject and content. Each category is de-duplicated in
// pattern-scan order; categories are not reconciled with each other.
func Extract(content, subject string, now time.Time) model.ExtractedData {
	text := strings.TrimSpace(subject + "\n" + content)
	return model.ExtractedData{
		Dates:       Dates(text, now),
		Amounts:     Amounts(text),
		ActionItems: ActionItems(text),
		Contacts:    FindContacts(text),
	}
}

type amountPattern struct {
	re    *regexp.Regexp
	group int
}

// Amount patterns, tried in order over the whole text.
var amountPatterns = []amountPattern{
	// "$5,000", "$ 12.50"
	{regexp.MustCompile(`\$\s?(\d[\d,]*(?:\.\d+)?)`), 1},
	// "300 USD", "1,200 dollars"
	{regexp.MustCompile(`(?i)\b(\d[\d,]*(?:\.\d+)?)\s*(?:usd|dollars?)\b`), 1},
	// "budget: 5000", "total of $750"
	{regexp.MustCompile(`(?i)\b(?:amount|budget|price|cost|total|value|fee)s?\s*(?:is|of|:|=)?\s*\$?\s*(\d[\d,]*(?:\.\d+)?)`), 1},
}

// Amounts returns positive monetary values found in text.
func Amounts(text string) []float64 {
	out := []float64{}
	seen := make(map[float64]bool)
	for _, p := range amountPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[p.group], ",", ""), 64)
			if err != nil || v <= 0 || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Action item patterns. The label form captures what follows the label;
// the phrase form keeps the introducing keyword.
var actionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^[ \t]*(?:action(?:[ \t]+items?)?|todo|to-do|reminder)[ \t]*[:\-][ \t]*(.+)$`),
	regexp.MustCompile(`(?i)\b((?:please|need to|needs to|should|must|follow[ -]up)\b[^.!?\n]*)`),
}

// ActionItems returns trimmed phrases introduced by action keywords.
func ActionItems(text string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, re := range actionPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			item := strings.TrimRight(strings.TrimSpace(m[1]), " ,;:-")
			if len(item) < MinActionItem {
				continue
			}
			key := strings.ToLower(item)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, item)
		}
	}
	return out
}
