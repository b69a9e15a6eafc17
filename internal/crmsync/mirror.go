// Package crmsync mirrors CRM records created by the pipeline into
// Salesforce as Accounts, Opportunities, Tasks and Notes.
package crmsync

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/resilience"
	"github.com/sells-group/intake-cli/pkg/salesforce"
)

// Store records the Salesforce ids of mirrored records.
type Store interface {
	SetOrganizationSalesforceID(ctx context.Context, id, sfID string) error
	SetDealSalesforceID(ctx context.Context, id, sfID string) error
}

// Mirror writes to Salesforce through a retrying circuit breaker.
type Mirror struct {
	client salesforce.Client
	guard  *resilience.Guard
	store  Store
	now    func() time.Time
}

// New creates a Mirror.
func New(client salesforce.Client, guard *resilience.Guard, st Store) *Mirror {
	return &Mirror{client: client, guard: guard, store: st, now: time.Now}
}

// Organization links org to a Salesforce Account, reusing an Account with
// the same name before creating one.
func (m *Mirror) Organization(ctx context.Context, org *model.Organization) error {
	if org.SalesforceID != "" {
		return nil
	}

	var sfID string
	err := m.guard.Do(ctx, "account", func(ctx context.Context) error {
		existing, err := salesforce.FindAccountByName(ctx, m.client, org.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			sfID = existing.ID
			return nil
		}
		fields := map[string]any{"Name": org.Name}
		if desc := provenanceText(org.Provenance); desc != "" {
			fields["Description"] = desc
		}
		if domain := (model.Address{Email: org.Email}).Domain(); domain != "" {
			fields["Website"] = domain
		}
		sfID, err = salesforce.CreateAccount(ctx, m.client, fields)
		return err
	})
	if err != nil {
		return eris.Wrapf(err, "crmsync: mirror organization %s", org.ID)
	}

	if err := m.store.SetOrganizationSalesforceID(ctx, org.ID, sfID); err != nil {
		return eris.Wrap(err, "crmsync: save account id")
	}
	org.SalesforceID = sfID
	zap.L().Debug("crmsync: organization mirrored",
		zap.String("organization_id", org.ID),
		zap.String("account_id", sfID),
	)
	return nil
}

// Deal creates an Opportunity for deal, mirroring its organization first
// when needed.
func (m *Mirror) Deal(ctx context.Context, org *model.Organization, deal *model.Deal) error {
	if deal.SalesforceID != "" {
		return nil
	}
	if err := m.Organization(ctx, org); err != nil {
		return err
	}

	closeDate := m.now()
	if deal.ExpectedCloseDate != nil {
		closeDate = *deal.ExpectedCloseDate
	}
	fields := map[string]any{
		"Name":      deal.Name,
		"StageName": deal.Stage,
		"CloseDate": salesforce.FormatDate(closeDate),
	}
	if desc := provenanceText(deal.Provenance); desc != "" {
		fields["Description"] = desc
	}
	if deal.Amount != nil {
		fields["Amount"] = *deal.Amount
	}

	var sfID string
	err := m.guard.Do(ctx, "opportunity", func(ctx context.Context) error {
		var err error
		sfID, err = salesforce.CreateOpportunity(ctx, m.client, org.SalesforceID, fields)
		return err
	})
	if err != nil {
		return eris.Wrapf(err, "crmsync: mirror deal %s", deal.ID)
	}
	if err := m.store.SetDealSalesforceID(ctx, deal.ID, sfID); err != nil {
		return eris.Wrap(err, "crmsync: save opportunity id")
	}
	deal.SalesforceID = sfID
	return nil
}

// Amount updates the Opportunity amount. Deals never mirrored are skipped.
func (m *Mirror) Amount(ctx context.Context, deal *model.Deal, amount float64) error {
	if deal.SalesforceID == "" {
		return nil
	}
	err := m.guard.Do(ctx, "opportunity.amount", func(ctx context.Context) error {
		return salesforce.UpdateOpportunity(ctx, m.client, deal.SalesforceID, map[string]any{"Amount": amount})
	})
	return eris.Wrapf(err, "crmsync: mirror amount for deal %s", deal.ID)
}

// Note attaches note to the deal's Opportunity.
func (m *Mirror) Note(ctx context.Context, deal *model.Deal, note *model.Note) error {
	if deal.SalesforceID == "" {
		return nil
	}
	body := note.Body
	if note.Sender.Email != "" {
		body = fmt.Sprintf("From: %s\n\n%s", note.Sender, body)
	}
	err := m.guard.Do(ctx, "note", func(ctx context.Context) error {
		_, err := salesforce.CreateNote(ctx, m.client, deal.SalesforceID, note.Title, body)
		return err
	})
	return eris.Wrapf(err, "crmsync: mirror note %s", note.ID)
}

// Task creates an open Salesforce Task on the deal's Opportunity.
func (m *Mirror) Task(ctx context.Context, deal *model.Deal, task *model.Task) error {
	if deal.SalesforceID == "" {
		return nil
	}
	fields := map[string]any{
		"Subject":     task.Title,
		"Status":      "Not Started",
		"Description": "Created from inbound message " + task.MessageID,
	}
	if task.DueDate != nil {
		fields["ActivityDate"] = salesforce.FormatDate(*task.DueDate)
	}
	err := m.guard.Do(ctx, "task", func(ctx context.Context) error {
		_, err := salesforce.CreateTask(ctx, m.client, deal.SalesforceID, fields)
		return err
	})
	return eris.Wrapf(err, "crmsync: mirror task %s", task.ID)
}

// provenanceText is empty for records the pipeline did not create.
func provenanceText(p *model.Provenance) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("Created by intake routing (%s, confidence %.2f) from message %s",
		p.RoutingMethod, p.RoutingConfidence, p.SourceMessageID)
}
