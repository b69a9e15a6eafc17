// Package classify derives sentiment, urgency and category from message
// text by keyword scoring.
package classify

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/intake-cli/internal/model"
)

type category struct {
	name model.Category
	re   *regexp.Regexp
}

// Classifier scores text against a compiled Lexicon.
type Classifier struct {
	lex        Lexicon
	categories []category
}

// New compiles lex into a Classifier.
func New(lex Lexicon) (*Classifier, error) {
	c := &Classifier{lex: lex}
	for _, rule := range lex.Categories {
		re, err := regexp.Compile(`(?i)` + rule.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "classify: compile category %s", rule.Name)
		}
		c.categories = append(c.categories, category{name: rule.Name, re: re})
	}
	return c, nil
}

// Default returns a Classifier over DefaultLexicon.
func Default() *Classifier {
	c, err := New(DefaultLexicon())
	if err != nil {
		panic(err)
	}
	return c
}

// Classify labels content and subject.
func (c *Classifier) Classify(content, subject string) model.Classification {
	text := strings.ToLower(subject + "\n" + content)
	return model.Classification{
		Sentiment: c.sentiment(text),
		Urgency:   c.urgency(text),
		Category:  c.category(text),
	}
}

func (c *Classifier) sentiment(text string) model.Sentiment {
	pos := hits(text, c.lex.Positive)
	neg := hits(text, c.lex.Negative)
	switch {
	case pos > neg:
		return model.SentimentPositive
	case neg > pos:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

// urgency checks tiers high then medium; anything else is low.
func (c *Classifier) urgency(text string) model.Urgency {
	if hits(text, c.lex.UrgencyHigh) > 0 {
		return model.UrgencyHigh
	}
	if hits(text, c.lex.UrgencyMedium) > 0 {
		return model.UrgencyMedium
	}
	return model.UrgencyLow
}

func (c *Classifier) category(text string) model.Category {
	for _, cat := range c.categories {
		if cat.re.MatchString(text) {
			return cat.name
		}
	}
	return model.CategoryGeneral
}

func hits(text string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		n += strings.Count(text, k)
	}
	return n
}
