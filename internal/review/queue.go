// Package review files unroutable messages into a Notion database for a
// person to route by hand.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/pkg/notion"
)

// Review database property names.
const (
	PropName       = "Name"
	PropStatus     = "Status"
	PropSender     = "Sender"
	PropMessageID  = "Message ID"
	PropReceived   = "Received"
	PropCategory   = "Category"
	PropUrgency    = "Urgency"
	PropMaxAmount  = "Amount"
	StatusNeedsRev = "Needs Review"
)

// maxBodyPreview bounds the message text copied into the page.
const maxBodyPreview = 4000

// Queue submits messages to a Notion review database.
type Queue struct {
	client notion.Client
	dbID   string
}

// NewQueue creates a Queue writing to database dbID.
func NewQueue(client notion.Client, dbID string) *Queue {
	return &Queue{client: client, dbID: dbID}
}

// Submit files msg for manual review and returns the page id. A message
// already in the database has its page reset to Needs Review instead of
// being filed twice.
func (q *Queue) Submit(ctx context.Context, msg *model.InboundMessage, analysis model.Analysis) (string, error) {
	existing, err := q.client.FindByText(ctx, q.dbID, PropMessageID, msg.ID)
	if err != nil {
		return "", eris.Wrap(err, "review: look up existing page")
	}
	if existing != nil {
		id := string(existing.ID)
		props := notionapi.Properties{PropStatus: notion.Status(StatusNeedsRev)}
		if err := q.client.SetProperties(ctx, id, props); err != nil {
			return "", eris.Wrapf(err, "review: reopen page for message %s", msg.ID)
		}
		return id, nil
	}

	pageID, err := q.client.CreatePage(ctx, q.dbID, properties(msg, analysis), blocks(msg, analysis))
	if err != nil {
		return "", eris.Wrapf(err, "review: create page for message %s", msg.ID)
	}

	zap.L().Info("review: message queued",
		zap.String("message_id", msg.ID),
		zap.String("page_id", pageID),
	)
	return pageID, nil
}

func properties(msg *model.InboundMessage, a model.Analysis) notionapi.Properties {
	title := strings.TrimSpace(msg.Subject)
	if title == "" {
		title = "(no subject)"
	}
	props := notionapi.Properties{
		PropName:      notion.Title(title),
		PropStatus:    notion.Status(StatusNeedsRev),
		PropMessageID: notion.Text(msg.ID),
		PropReceived:  notion.DateProp(msg.ReceivedAt),
	}
	if c := a.Classification.Category; c != "" {
		props[PropCategory] = notion.Select(string(c))
	}
	if u := a.Classification.Urgency; u != "" {
		props[PropUrgency] = notion.Select(string(u))
	}
	if msg.From.Email != "" {
		props[PropSender] = notion.Email(msg.From.Email)
	}
	if v, ok := a.Extracted.MaxAmount(); ok {
		props[PropMaxAmount] = notion.Number(v)
	}
	return props
}

func blocks(msg *model.InboundMessage, a model.Analysis) []notionapi.Block {
	body := strings.TrimSpace(msg.TextBody)
	if r := []rune(body); len(r) > maxBodyPreview {
		body = string(r[:maxBodyPreview]) + "..."
	}

	out := []notionapi.Block{
		notion.Paragraph(fmt.Sprintf("From %s, received %s. No routing strategy matched an organization.",
			msg.From, msg.ReceivedAt.UTC().Format(time.RFC1123))),
	}
	if body != "" {
		out = append(out, notion.Heading("Message"), notion.Paragraph(body))
	}

	var facts []string
	for _, item := range a.Extracted.ActionItems {
		facts = append(facts, "Action: "+item)
	}
	for _, d := range a.Extracted.Dates {
		facts = append(facts, "Date: "+d.Format("2006-01-02"))
	}
	for _, v := range a.Extracted.Amounts {
		facts = append(facts, fmt.Sprintf("Amount: $%.2f", v))
	}
	for _, e := range a.Extracted.Contacts.Emails {
		facts = append(facts, "Contact: "+e)
	}
	if len(facts) > 0 {
		out = append(out, notion.Heading("Extracted"))
		for _, f := range facts {
			out = append(out, notion.Bullet(f))
		}
	}
	return out
}
