// Package mailsource turns raw RFC 5322 messages into unprocessed
// InboundMessages.
package mailsource

import (
	"context"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/model"
)

// Inserter persists parsed messages.
type Inserter interface {
	InsertMessage(ctx context.Context, msg *model.InboundMessage) error
}

// ParseEML reads one MIME message. ReceivedAt comes from the Date header and
// is left zero when the header is missing or malformed.
func ParseEML(r io.Reader) (*model.InboundMessage, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, eris.Wrap(err, "mailsource: read envelope")
	}

	msg := &model.InboundMessage{
		ProviderID: trimAngles(env.GetHeader("Message-ID")),
		ThreadID:   threadID(env),
		Subject:    strings.TrimSpace(env.GetHeader("Subject")),
		TextBody:   env.Text,
		HTMLBody:   env.HTML,
	}

	if from, err := env.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = model.Address{Email: strings.ToLower(from[0].Address), Name: from[0].Name}
	} else if raw := strings.TrimSpace(env.GetHeader("From")); raw != "" {
		msg.From = model.Address{Email: strings.ToLower(strings.Trim(raw, "<>"))}
	}
	if msg.From.Email == "" {
		return nil, eris.New("mailsource: message has no sender")
	}

	if to, err := env.AddressList("To"); err == nil {
		for _, a := range to {
			msg.To = append(msg.To, strings.ToLower(a.Address))
		}
	}

	if d := env.GetHeader("Date"); d != "" {
		if t, err := mail.ParseDate(d); err == nil {
			msg.ReceivedAt = t.UTC()
		}
	}

	for _, perr := range env.Errors {
		zap.L().Debug("mailsource: mime warning",
			zap.String("message_id", msg.ProviderID),
			zap.String("error", perr.Error()),
		)
	}

	return msg, nil
}

// ParseFile parses a single .eml file.
func ParseFile(path string) (*model.InboundMessage, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, eris.Wrapf(err, "mailsource: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	msg, err := ParseEML(f)
	if err != nil {
		return nil, eris.Wrapf(err, "mailsource: parse %s", path)
	}
	return msg, nil
}

// Collect expands paths into .eml files. Directories are read one level deep.
func Collect(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, eris.Wrapf(err, "mailsource: stat %s", p)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.eml"))
		if err != nil {
			return nil, eris.Wrapf(err, "mailsource: glob %s", p)
		}
		files = append(files, matches...)
	}
	return files, nil
}

// IngestResult counts the outcome of an Ingest call.
type IngestResult struct {
	Inserted int      `json:"inserted"`
	Failed   int      `json:"failed"`
	IDs      []string `json:"ids"`
}

// Ingest parses and inserts every file. Parse or insert failures are logged
// and counted; only context cancellation stops the run.
func Ingest(ctx context.Context, st Inserter, files []string) (IngestResult, error) {
	var res IngestResult
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "mailsource: ingest cancelled")
		}

		msg, err := ParseFile(path)
		if err != nil {
			zap.L().Warn("mailsource: skipping file", zap.String("path", path), zap.Error(err))
			res.Failed++
			continue
		}
		if err := st.InsertMessage(ctx, msg); err != nil {
			zap.L().Warn("mailsource: insert failed", zap.String("path", path), zap.Error(err))
			res.Failed++
			continue
		}

		res.Inserted++
		res.IDs = append(res.IDs, msg.ID)
	}
	return res, nil
}

// threadID prefers Outlook's Thread-Index, then the root of References,
// then In-Reply-To.
func threadID(env *enmime.Envelope) string {
	if ti := strings.TrimSpace(env.GetHeader("Thread-Index")); ti != "" {
		return ti
	}
	if refs := strings.Fields(env.GetHeader("References")); len(refs) > 0 {
		return trimAngles(refs[0])
	}
	return trimAngles(env.GetHeader("In-Reply-To"))
}

func trimAngles(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "<"), ">")
}
