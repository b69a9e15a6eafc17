package mailsource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/store"
)

const multipartEML = "From: Jane Doe <Jane@Acme.com>\r\n" +
	"To: Sales <sales@example.com>, crm@example.com\r\n" +
	"Subject: Re: Website Revamp\r\n" +
	"Date: Mon, 02 Mar 2026 09:30:00 -0500\r\n" +
	"Message-ID: <abc123@mail.acme.com>\r\n" +
	"References: <root@mail.acme.com> <mid@mail.acme.com>\r\n" +
	"In-Reply-To: <mid@mail.acme.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Account: Acme Inc\r\nBudget is $5,000.\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Account: Acme Inc</p><p>Budget is $5,000.</p>\r\n" +
	"--b1--\r\n"

func TestParseEML_Multipart(t *testing.T) {
	msg, err := ParseEML(strings.NewReader(multipartEML))
	require.NoError(t, err)

	assert.Equal(t, model.Address{Email: "jane@acme.com", Name: "Jane Doe"}, msg.From)
	assert.Equal(t, []string{"sales@example.com", "crm@example.com"}, msg.To)
	assert.Equal(t, "Re: Website Revamp", msg.Subject)
	assert.Equal(t, "abc123@mail.acme.com", msg.ProviderID)
	assert.Equal(t, "root@mail.acme.com", msg.ThreadID)
	assert.Contains(t, msg.TextBody, "Budget is $5,000.")
	assert.Contains(t, msg.HTMLBody, "<p>Account: Acme Inc</p>")
	assert.Equal(t, time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC), msg.ReceivedAt)
	assert.False(t, msg.Processed)
}

func TestParseEML_ThreadHeaders(t *testing.T) {
	base := "From: a@b.com\r\nTo: c@d.com\r\nSubject: x\r\n"
	tests := []struct {
		name    string
		headers string
		want    string
	}{
		{"thread index wins", "Thread-Index: AdQ1xyz==\r\nReferences: <r@x>\r\n", "AdQ1xyz=="},
		{"in-reply-to fallback", "In-Reply-To: <parent@x>\r\n", "parent@x"},
		{"none", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := base + tt.headers + "\r\nhello there\r\n"
			msg, err := ParseEML(strings.NewReader(raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.ThreadID)
			assert.True(t, msg.ReceivedAt.IsZero())
		})
	}
}

func TestParseEML_NoSender(t *testing.T) {
	_, err := ParseEML(strings.NewReader("To: c@d.com\r\nSubject: x\r\n\r\nbody\r\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sender")
}

func writeEML(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	a := writeEML(t, dir, "a.eml", multipartEML)
	writeEML(t, dir, "notes.txt", "ignore")
	single := writeEML(t, t.TempDir(), "b.msg", multipartEML)

	files, err := Collect([]string{dir, single})
	require.NoError(t, err)
	assert.Equal(t, []string{a, single}, files)

	_, err = Collect([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	dir := t.TempDir()
	good := writeEML(t, dir, "good.eml", multipartEML)
	bad := writeEML(t, dir, "bad.eml", "To: c@d.com\r\n\r\nno sender\r\n")

	res, err := Ingest(ctx, st, []string{good, bad})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.IDs, 1)

	msg, err := st.GetMessage(ctx, res.IDs[0])
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.com", msg.From.Email)
	assert.False(t, msg.Processed)
}

type failingInserter struct{}

func (failingInserter) InsertMessage(context.Context, *model.InboundMessage) error {
	return errors.New("disk full")
}

func TestIngest_InsertFailureAndCancel(t *testing.T) {
	path := writeEML(t, t.TempDir(), "a.eml", multipartEML)

	res, err := Ingest(context.Background(), failingInserter{}, []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Ingest(ctx, failingInserter{}, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}
