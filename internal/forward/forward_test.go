package forward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsForwarded(t *testing.T) {
	intake := Intake{Address: "intake@example.com", OrgDomain: "example.com"}
	tests := []struct {
		name    string
		subject string
		to      []string
		want    bool
	}{
		{"intake address", "FW: Proposal", []string{"intake@example.com"}, true},
		{"intake address mixed case", "fw: Proposal", []string{"Intake@Example.com"}, true},
		{"display name form", "FW: Proposal", []string{"Intake <intake@example.com>"}, true},
		{"crm on org domain", "Fw: Proposal", []string{"crm@example.com"}, true},
		{"crm alias", "FW: Proposal", []string{"crm"}, true},
		{"fwd prefix is not fw", "Fwd: Proposal", []string{"intake@example.com"}, false},
		{"re prefix", "RE: Proposal", []string{"intake@example.com"}, false},
		{"multiple recipients", "FW: Proposal", []string{"intake@example.com", "bob@example.com"}, false},
		{"no recipients", "FW: Proposal", nil, false},
		{"crm on other domain", "FW: Proposal", []string{"crm@other.com"}, false},
		{"unrelated recipient", "FW: Proposal", []string{"bob@example.com"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsForwarded(tt.subject, tt.to, intake))
		})
	}
}

func TestUnwrap_OutlookOriginalMessage(t *testing.T) {
	body := "FYI, see below.\n\n-----Original Message-----\n" +
		"From: Jane Doe <jane@beta.com>\n" +
		"Sent: Monday, March 2, 2026 9:00 AM\n" +
		"To: sales@example.com; bob@example.com\n" +
		"Subject: Proposal\n" +
		"\n" +
		"Hi team,\nAccount: Beta LLC\nBudget $5,000\n"

	u := Unwrap(body)
	require.NotNil(t, u)
	assert.Equal(t, "Jane Doe", u.From.Name)
	assert.Equal(t, "jane@beta.com", u.From.Email)
	assert.Equal(t, []string{"sales@example.com", "bob@example.com"}, u.To)
	assert.Equal(t, "Hi team,\nAccount: Beta LLC\nBudget $5,000", u.Body)
	assert.Equal(t, "FYI, see below.", u.Wrapper)
}

func TestUnwrap_GmailForward(t *testing.T) {
	body := "---------- Forwarded message ---------\n" +
		"From: \"Jane Doe\" <jane@beta.com>\n" +
		"Date: Mon, Mar 2, 2026 at 9:00 AM\n" +
		"Subject: Proposal for Beta LLC\n" +
		"To: <sales@example.com>\n" +
		"\n" +
		"Please review the attached.\n"

	u := Unwrap(body)
	require.NotNil(t, u)
	assert.Equal(t, "Jane Doe", u.From.Name)
	assert.Equal(t, "jane@beta.com", u.From.Email)
	assert.Equal(t, []string{"sales@example.com"}, u.To)
	assert.Equal(t, "Please review the attached.", u.Body)
	assert.Empty(t, u.Wrapper)
}

func TestUnwrap_BareFromAddress(t *testing.T) {
	u := Unwrap("From: jane@beta.com\nSubject: Hi\n\nBody text")
	require.NotNil(t, u)
	assert.Equal(t, "jane@beta.com", u.From.Email)
	assert.Empty(t, u.From.Name)
	assert.Equal(t, "Body text", u.Body)
}

func TestUnwrap_OnWroteLine(t *testing.T) {
	body := "Adding the CRM.\n\nOn Mon, Mar 2, 2026 at 9:00 AM Jane Doe <jane@beta.com> wrote:\nCan we meet on 3/15?"

	u := Unwrap(body)
	require.NotNil(t, u)
	assert.Equal(t, "jane@beta.com", u.From.Email)
	assert.Equal(t, "Can we meet on 3/15?", u.Body)
	assert.Equal(t, "Adding the CRM.", u.Wrapper)
}

func TestUnwrap_NoBoundaryStripsHeaders(t *testing.T) {
	body := "-----Original Message-----\nFrom: jane@beta.com\nTo: sales@example.com\nNeed pricing by Friday"

	u := Unwrap(body)
	require.NotNil(t, u)
	assert.Equal(t, "Need pricing by Friday", u.Body)
}

func TestUnwrap_NothingRecovered(t *testing.T) {
	assert.Nil(t, Unwrap("Just a note with no forwarded section."))
	assert.Nil(t, Unwrap("-----Original Message-----\nno headers here"))
	assert.Nil(t, Unwrap(""))
}

func TestUnwrap_CRLF(t *testing.T) {
	u := Unwrap("From: Jane <jane@beta.com>\r\nSubject: Hi\r\n\r\nHello")
	require.NotNil(t, u)
	assert.Equal(t, "jane@beta.com", u.From.Email)
	assert.Equal(t, "Hello", u.Body)
}
