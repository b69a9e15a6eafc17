package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/intake-cli/internal/model"
)

func TestClassify(t *testing.T) {
	c := Default()
	tests := []struct {
		name    string
		subject string
		content string
		want    model.Classification
	}{
		{
			name:    "positive proposal",
			subject: "Proposal for Beta LLC",
			content: "Great working with you, excited to start.",
			want:    model.Classification{Sentiment: model.SentimentPositive, Urgency: model.UrgencyLow, Category: model.CategoryProposal},
		},
		{
			name:    "negative urgent complaint",
			subject: "Unacceptable delay",
			content: "We are disappointed. Please respond ASAP.",
			want:    model.Classification{Sentiment: model.SentimentNegative, Urgency: model.UrgencyHigh, Category: model.CategoryComplaint},
		},
		{
			name:    "tie is neutral, medium urgency",
			subject: "Schedule",
			content: "Great, but there is a problem with the deadline.",
			want:    model.Classification{Sentiment: model.SentimentNeutral, Urgency: model.UrgencyMedium, Category: model.CategorySupport},
		},
		{
			name:    "high beats medium",
			subject: "Order",
			content: "Need this soon, it is urgent.",
			want:    model.Classification{Sentiment: model.SentimentNeutral, Urgency: model.UrgencyHigh, Category: model.CategoryOrder},
		},
		{
			name:    "general default",
			subject: "Account: Acme Corp",
			content: "Budget is $5,000.",
			want:    model.Classification{Sentiment: model.SentimentNeutral, Urgency: model.UrgencyLow, Category: model.CategoryGeneral},
		},
		{
			name:    "inquiry wins over later categories",
			subject: "Question about the meeting",
			content: "",
			want:    model.Classification{Sentiment: model.SentimentNeutral, Urgency: model.UrgencyLow, Category: model.CategoryInquiry},
		},
		{
			name:    "low list does not matter",
			subject: "Hello",
			content: "No rush on this.",
			want:    model.Classification{Sentiment: model.SentimentNeutral, Urgency: model.UrgencyLow, Category: model.CategoryGeneral},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.content, tt.subject))
		})
	}
}

func TestNew_BadPattern(t *testing.T) {
	lex := DefaultLexicon()
	lex.Categories = append(lex.Categories, CategoryRule{Name: "Broken", Pattern: `(`})
	_, err := New(lex)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify: compile category Broken")
}

func TestLoadLexicon_OverridesPresentLists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
urgency_high:
  - "dringend"
categories:
  - name: Order
    pattern: '\bbestellung\b'
`), 0o644))

	lex, err := LoadLexicon(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"dringend"}, lex.UrgencyHigh)
	assert.Equal(t, DefaultLexicon().Positive, lex.Positive)
	require.Len(t, lex.Categories, 1)

	c, err := New(lex)
	require.NoError(t, err)
	got := c.Classify("Bestellung ist dringend", "")
	assert.Equal(t, model.UrgencyHigh, got.Urgency)
	assert.Equal(t, model.CategoryOrder, got.Category)

	assert.Equal(t, model.UrgencyLow, c.Classify("urgent", "").Urgency)
}

func TestLoadLexicon_Errors(t *testing.T) {
	_, err := LoadLexicon(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("positive: [unclosed"), 0o644))
	_, err = LoadLexicon(path)
	assert.Error(t, err)
}
