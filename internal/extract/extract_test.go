package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/intake-cli/internal/model"
)

var now = time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExtract_ScenarioBody(t *testing.T) {
	got := Extract("Budget is $5,000. Please send the contract by 5/1.", "Account: Acme Corp, Opportunity: Website Revamp", now)

	assert.Equal(t, []float64{5000}, got.Amounts)
	require.NotEmpty(t, got.ActionItems)
	assert.Equal(t, "Please send the contract by 5/1", got.ActionItems[0])
	assert.Empty(t, got.Contacts.Emails)
}

func TestDates(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []time.Time
	}{
		{"us numeric", "Signed on 04/15/2026", []time.Time{day(2026, time.April, 15)}},
		{"iso", "Start 2026-05-01 please", []time.Time{day(2026, time.May, 1)}},
		{"month name default year", "Kickoff March 3", []time.Time{day(2026, time.March, 3)}},
		{"month name with year", "Renewal on Sept. 14th, 2027", []time.Time{day(2027, time.September, 14)}},
		{"today", "Call me today", []time.Time{now}},
		{"tomorrow", "Call me tomorrow", []time.Time{now.Add(24 * time.Hour)}},
		{"keyword short form", "Deadline 5/1 is firm", []time.Time{day(2026, time.May, 1)}},
		{"keyword two digit year", "follow up by 6/2/27", []time.Time{day(2027, time.June, 2)}},
		{"invalid calendar date dropped", "Due 02/30/2026 or 13/01/2026", []time.Time{}},
		{"duplicates removed", "meeting 5/1/2026 then again 05/01/2026", []time.Time{day(2026, time.May, 1)}},
		{"none", "No dates here", []time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dates(tt.text, now))
		})
	}
}

func TestAmounts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []float64
	}{
		{"dollar sign", "It costs $1,250.50 total", []float64{1250.5}},
		{"usd suffix", "about 300 USD", []float64{300}},
		{"dollars word", "roughly 2,000 dollars", []float64{2000}},
		{"keyword", "Budget: 7500", []float64{7500}},
		{"same value across patterns", "Budget is $5,000 (5,000 USD)", []float64{5000}},
		{"zero dropped", "fee of $0", []float64{}},
		{"multiple", "$100 now and $200 later", []float64{100, 200}},
		{"none", "no money talk", []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Amounts(tt.text))
		})
	}
}

func TestActionItems(t *testing.T) {
	text := `Action: Review the SOW
TODO: sign
Reminder - renew the domain
We need to book travel. You must confirm headcount!
please review the SOW`

	got := ActionItems(text)
	assert.Equal(t, []string{
		"Review the SOW",
		"renew the domain",
		"need to book travel",
		"must confirm headcount",
		"please review the SOW",
	}, got)
}

func TestActionItems_DedupesCaseInsensitive(t *testing.T) {
	got := ActionItems("Please call Bob. please call bob.")
	assert.Equal(t, []string{"Please call Bob"}, got)
}

func TestFindContacts(t *testing.T) {
	text := `Thanks Jane Doe, reach me at Jane.Doe@Beta.com or jane.doe@beta.com.
Phones: (555) 123-4567, 555-987-6543, 555.222.3333, 555-987-6543
Dear Bob, Best Regards from Acme Corp and Mary Ann Smith`

	c := FindContacts(text)
	assert.Equal(t, []string{"Jane.Doe@Beta.com"}, c.Emails)
	assert.Equal(t, []string{"(555) 123-4567", "555-987-6543", "555.222.3333"}, c.Phones)
	assert.Contains(t, c.Names, "Jane Doe")
	assert.Contains(t, c.Names, "Mary Ann Smith")
	assert.NotContains(t, c.Names, "Best Regards")
	assert.NotContains(t, c.Names, "Acme Corp")
	assert.NotContains(t, c.Names, "Thanks Jane Doe")
}

func TestFilterInternal(t *testing.T) {
	c := model.Contacts{
		Emails: []string{"jane@beta.com", "Bob@Example.com", "intake@example.org", "ceo@partner.io"},
		Phones: []string{"555-123-4567"},
	}

	got := FilterInternal(c, []string{"example.com"}, []string{"INTAKE@example.org"})
	assert.Equal(t, []string{"jane@beta.com", "ceo@partner.io"}, got.Emails)
	assert.Equal(t, c.Phones, got.Phones)

	assert.Equal(t, c, FilterInternal(c, nil, nil))
}
