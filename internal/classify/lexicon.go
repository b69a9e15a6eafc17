package classify

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/intake-cli/internal/model"
)

// Lexicon is the keyword and pattern set the classifier scores against.
type Lexicon struct {
	Positive      []string       `yaml:"positive"`
	Negative      []string       `yaml:"negative"`
	UrgencyHigh   []string       `yaml:"urgency_high"`
	UrgencyMedium []string       `yaml:"urgency_medium"`
	UrgencyLow    []string       `yaml:"urgency_low"`
	Categories    []CategoryRule `yaml:"categories"`
}

// CategoryRule maps a case-insensitive regular expression to a category.
// Rules are evaluated in order.
type CategoryRule struct {
	Name    model.Category `yaml:"name"`
	Pattern string         `yaml:"pattern"`
}

// DefaultLexicon returns the built-in lexicon.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Positive: []string{
			"thank", "great", "excellent", "appreciate", "happy", "pleased",
			"excited", "love", "wonderful", "perfect", "glad", "looking forward",
		},
		Negative: []string{
			"disappointed", "unhappy", "frustrated", "problem", "issue",
			"unacceptable", "poor", "delay", "cancel", "complaint", "angry", "wrong",
		},
		UrgencyHigh: []string{
			"urgent", "asap", "immediately", "emergency", "critical", "right away",
		},
		UrgencyMedium: []string{
			"soon", "this week", "deadline", "priority", "time-sensitive", "by friday",
		},
		UrgencyLow: []string{
			"when you can", "no rush", "whenever", "at your convenience",
		},
		Categories: []CategoryRule{
			{model.CategoryInquiry, `\b(inquiry|enquiry|question|wondering|interested in|information (?:about|on)|pricing for)\b`},
			{model.CategoryProposal, `\b(proposal|quote|quotation|estimate|bid|rfp|sow|statement of work)\b`},
			{model.CategoryFollowUp, `\b(follow(?:ing)?[ -]?up|checking in|circling back|touch base)\b`},
			{model.CategoryComplaint, `\b(complaint|disappointed|unacceptable|frustrated|unhappy|refund)\b`},
			{model.CategorySupport, `\b(support|issue|problem|bug|error|not working|broken|help)\b`},
			{model.CategoryMeeting, `\b(meeting|call|schedule|calendar|appointment|availability|demo)\b`},
			{model.CategoryOrder, `\b(order|purchase|invoice|payment|shipment|delivery)\b`},
			{model.CategoryThankYou, `\b(thank you|thanks|appreciate|grateful)\b`},
		},
	}
}

// LoadLexicon reads a YAML lexicon. Lists present in the file replace the
// built-in ones; absent lists keep their defaults.
func LoadLexicon(path string) (Lexicon, error) {
	lex := DefaultLexicon()
	data, err := os.ReadFile(path)
	if err != nil {
		return lex, eris.Wrapf(err, "classify: read lexicon %s", path)
	}
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return lex, eris.Wrap(err, "classify: parse lexicon")
	}
	return lex, nil
}
