package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/extract"
	"github.com/sells-group/intake-cli/internal/forward"
	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/normalize"
	"github.com/sells-group/intake-cli/internal/routing"
	"github.com/sells-group/intake-cli/internal/settings"
	"github.com/sells-group/intake-cli/internal/thread"
)

// Outcome is the terminal state of one processing attempt.
type Outcome string

const (
	OutcomeRouted           Outcome = "routed"
	OutcomeSkippedTesting   Outcome = "skipped-testing"
	OutcomeSkippedEmpty     Outcome = "skipped-empty"
	OutcomeSkippedDuplicate Outcome = "skipped-duplicate"
	OutcomeUnrouted         Outcome = "unrouted"
	OutcomeAlreadyProcessed Outcome = "already-processed"
)

// ProcessMessage runs one message through the pipeline and reports whether
// CRM records were written for it. A message already marked processed, in
// msg or in the store, is left untouched.
func (p *Pipeline) ProcessMessage(ctx context.Context, msg *model.InboundMessage, userID string) (bool, error) {
	if msg.Processed {
		return false, nil
	}
	current, err := p.store.GetMessage(ctx, msg.ID)
	if err != nil {
		return false, eris.Wrapf(err, "pipeline: load message %s", msg.ID)
	}
	if current.Processed {
		msg.Processed = true
		return false, nil
	}
	actor := p.actor(userID)
	cfg, err := p.resolver.Resolve(ctx, actor)
	if err != nil {
		return false, eris.Wrap(err, "pipeline: resolve settings")
	}
	out, err := p.processOne(ctx, msg, actor, cfg)
	return out == OutcomeRouted, err
}

// processOne is the per-message error boundary: errors and panics become a
// failure audit entry and leave the message unprocessed.
func (p *Pipeline) processOne(ctx context.Context, msg *model.InboundMessage, actor string, cfg settings.Resolved) (out Outcome, err error) {
	log := zap.L().With(zap.String("message_id", msg.ID), zap.String("thread_id", msg.ThreadID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: panic while processing message",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = eris.Errorf("pipeline: panic: %v", r)
		}
		if err != nil {
			p.audit.Failure(ctx, msg.ID, "Processing failed", map[string]any{"error": err.Error()})
		}
	}()
	return p.run(ctx, msg, actor, cfg, log)
}

func (p *Pipeline) run(ctx context.Context, msg *model.InboundMessage, actor string, cfg settings.Resolved, log *zap.Logger) (Outcome, error) {
	now := p.now()
	p.audit.Info(ctx, msg.ID, "Processing started", map[string]any{
		"subject": msg.Subject,
		"from":    msg.From.Email,
		"actor":   actor,
	})

	// Forwarded into the intake mailbox: route on the original sender/body.
	sender := msg.From
	text, html, wrapper := msg.TextBody, msg.HTMLBody, ""
	if forward.IsForwarded(msg.Subject, msg.To, forward.Intake{Address: cfg.IntakeAddress, OrgDomain: cfg.OrgDomain}) {
		raw := text
		if strings.TrimSpace(raw) == "" {
			raw = normalize.HTMLToText(html)
		}
		if u := forward.Unwrap(raw); u != nil {
			if u.From.Email != "" {
				sender = u.From
			}
			text, html, wrapper = u.Body, "", u.Wrapper
			p.audit.Info(ctx, msg.ID, "Unwrapped forwarded message", map[string]any{
				"original_sender":     u.From.Email,
				"original_recipients": u.To,
				"forwarded_by":        msg.From.Email,
			})
		} else {
			p.audit.Warning(ctx, msg.ID, "Forwarded message could not be unwrapped", nil)
		}
	}

	subject := normalize.Subject(msg.Subject, cfg.SubjectPrefixes)

	if strings.Contains(strings.ToLower(msg.Subject), "testing") {
		return p.skip(ctx, msg, OutcomeSkippedTesting, "Skipped test message", map[string]any{"subject": msg.Subject})
	}

	raw := text
	if strings.TrimSpace(raw) == "" {
		raw = normalize.HTMLToText(html)
	}
	content := normalize.CleanContent(text, html)
	if len(strings.TrimSpace(content)) < MinContentLength {
		return p.skip(ctx, msg, OutcomeSkippedEmpty, "Skipped message with insufficient content", map[string]any{
			"content_length": len(strings.TrimSpace(content)),
		})
	}

	history, err := p.dedup.History(ctx, msg.ThreadID, msg.ID)
	if err != nil {
		return "", err
	}
	noteHTML := ""
	if html != "" {
		noteHTML = normalize.CleanHTML(html)
	}
	if len(history) > 0 {
		dup, score, err := p.dedup.IsDuplicate(ctx, content, history)
		if err != nil {
			return "", err
		}
		if dup {
			return p.skip(ctx, msg, OutcomeSkippedDuplicate, "Skipped duplicate thread content", map[string]any{
				"thread_id":  msg.ThreadID,
				"similarity": score,
			})
		}

		priors := make([]string, 0, len(history))
		for _, h := range history {
			priors = append(priors, normalize.CleanContent(h.TextBody, h.HTMLBody))
		}
		if trimmed, ok := thread.ExtractNewContent(content, priors); ok {
			p.audit.Info(ctx, msg.ID, "Trimmed repeated thread history", map[string]any{
				"original_length": len(content),
				"new_length":      len(trimmed),
			})
			content = trimmed
			if h, ok := thread.TrimHTML(noteHTML); ok {
				noteHTML = h
			}
		}
	}

	extracted := extract.Extract(content, subject, now)
	internal := append([]string{cfg.IntakeAddress}, cfg.InternalAddresses...)
	extracted.Contacts = extract.FilterInternal(extracted.Contacts, cfg.InternalDomains, internal)
	classification := p.classifier.Classify(content, subject)
	p.audit.Info(ctx, msg.ID, "Analyzed content", map[string]any{
		"dates":        len(extracted.Dates),
		"amounts":      len(extracted.Amounts),
		"action_items": len(extracted.ActionItems),
		"category":     string(classification.Category),
		"sentiment":    string(classification.Sentiment),
		"urgency":      string(classification.Urgency),
	})

	res, err := p.router.Route(ctx, routing.Input{
		MessageID: msg.ID,
		Subject:   subject,
		Body:      content,
		RawBody:   raw,
		Wrapper:   wrapper,
		Sender:    sender,
		Actor:     actor,
		Now:       now,
	}, cfg)
	if errors.Is(err, routing.ErrNoRoute) {
		return p.unrouted(ctx, msg, model.Analysis{Extracted: extracted, Classification: classification}, log)
	}
	if err != nil {
		return "", err
	}

	p.audit.Success(ctx, msg.ID, "Routed to organization", map[string]any{
		"organization_id":      res.Organization.ID,
		"organization_name":    res.Organization.Name,
		"organization_created": res.OrganizationCreated,
		"deal_id":              res.Deal.ID,
		"deal_name":            res.Deal.Name,
		"deal_created":         res.DealCreated,
		"method":               string(res.Method),
		"confidence":           res.Confidence,
	})
	p.mirrorCreated(ctx, msg.ID, res)

	if amount, ok := extracted.MaxAmount(); ok {
		if err := p.store.UpdateDealAmount(ctx, res.Deal.ID, amount); err != nil {
			log.Warn("pipeline: failed to update deal amount", zap.Error(err))
			p.audit.Warning(ctx, msg.ID, "Failed to update deal amount", map[string]any{"amount": amount, "error": err.Error()})
		} else {
			res.Deal.Amount = &amount
			p.audit.Success(ctx, msg.ID, "Updated deal amount", map[string]any{"amount": amount})
			if p.mirror != nil {
				if err := p.mirror.Amount(ctx, res.Deal, amount); err != nil {
					p.audit.Warning(ctx, msg.ID, "Failed to mirror deal amount", map[string]any{"error": err.Error()})
				}
			}
		}
	}

	taskIDs := p.createTasks(ctx, msg, actor, res, extracted, cfg, log)

	title := subject
	if title == "" {
		title = "(no subject)"
	}
	note := &model.Note{
		OrganizationID: res.Organization.ID,
		DealID:         res.Deal.ID,
		MessageID:      msg.ID,
		Title:          title,
		Body:           content,
		HTML:           noteHTML,
		Sender:         sender,
		CreatedBy:      actor,
	}
	if err := p.store.CreateNote(ctx, note); err != nil {
		return "", eris.Wrap(err, "pipeline: create note")
	}
	p.audit.Success(ctx, msg.ID, "Created note", map[string]any{"note_id": note.ID, "sender": sender.Email})
	if p.mirror != nil {
		if err := p.mirror.Note(ctx, res.Deal, note); err != nil {
			p.audit.Warning(ctx, msg.ID, "Failed to mirror note", map[string]any{"error": err.Error()})
		}
	}

	completion := model.Completion{
		Analysis: model.Analysis{
			Extracted:      extracted,
			Classification: classification,
			Method:         res.Method,
			Confidence:     res.Confidence,
		},
		Linkage: model.Linkage{
			OrganizationID: res.Organization.ID,
			DealID:         res.Deal.ID,
			NoteID:         note.ID,
			TaskIDs:        taskIDs,
		},
	}
	p.audit.Success(ctx, msg.ID, "Processing complete", map[string]any{
		"organization_id": res.Organization.ID,
		"deal_id":         res.Deal.ID,
		"note_id":         note.ID,
		"tasks":           len(taskIDs),
	})
	if err := p.store.MarkProcessed(ctx, msg.ID, completion); err != nil {
		return "", eris.Wrap(err, "pipeline: mark processed")
	}
	msg.Processed = true
	msg.Linkage = completion.Linkage

	log.Info("pipeline: message routed",
		zap.String("organization_id", res.Organization.ID),
		zap.String("method", string(res.Method)),
		zap.Float64("confidence", res.Confidence),
	)
	return OutcomeRouted, nil
}

// skip records an input-quality skip and marks the message processed.
func (p *Pipeline) skip(ctx context.Context, msg *model.InboundMessage, out Outcome, reason string, details map[string]any) (Outcome, error) {
	p.audit.Skipped(ctx, msg.ID, reason, details)
	if err := p.store.MarkSkipped(ctx, msg.ID); err != nil {
		return "", eris.Wrap(err, "pipeline: mark skipped")
	}
	msg.Processed = true
	zap.L().Info("pipeline: message skipped", zap.String("message_id", msg.ID), zap.String("outcome", string(out)))
	return out, nil
}

// unrouted persists the analysis with zero confidence and leaves the
// message unprocessed so a later run can retry it.
func (p *Pipeline) unrouted(ctx context.Context, msg *model.InboundMessage, analysis model.Analysis, log *zap.Logger) (Outcome, error) {
	analysis.Confidence = model.ConfidenceNone
	if err := p.store.SaveAnalysis(ctx, msg.ID, analysis); err != nil {
		return "", eris.Wrap(err, "pipeline: save analysis")
	}
	attempts, err := p.store.IncrementRoutingAttempts(ctx, msg.ID)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: increment routing attempts")
	}
	p.audit.Failure(ctx, msg.ID, "No routing strategy found an organization", map[string]any{
		"routing_attempts": attempts,
	})
	log.Warn("pipeline: message not routed", zap.Int("routing_attempts", attempts))

	if p.review != nil && attempts == 1 {
		pageID, err := p.review.Submit(ctx, msg, analysis)
		if err != nil {
			p.audit.Warning(ctx, msg.ID, "Failed to queue message for manual review", map[string]any{"error": err.Error()})
		} else {
			p.audit.Info(ctx, msg.ID, "Queued for manual review", map[string]any{"review_id": pageID})
		}
	}
	return OutcomeUnrouted, nil
}

// createTasks writes up to MaxTasks tasks. Individual failures are audited
// as warnings and do not stop the remaining steps.
func (p *Pipeline) createTasks(ctx context.Context, msg *model.InboundMessage, actor string, res *routing.Result, extracted model.ExtractedData, cfg settings.Resolved, log *zap.Logger) []string {
	limit := cfg.MaxTasks
	if limit <= 0 {
		limit = DefaultMaxTasks
	}
	items := extracted.ActionItems
	if len(items) > limit {
		p.audit.Info(ctx, msg.ID, "Dropped excess action items", map[string]any{
			"dropped": len(items) - limit,
		})
		items = items[:limit]
	}

	due := firstDate(extracted)
	ids := make([]string, 0, len(items))
	for i, item := range items {
		task := &model.Task{
			OrganizationID: res.Organization.ID,
			DealID:         res.Deal.ID,
			MessageID:      msg.ID,
			Title:          item,
			Status:         model.TaskOpen,
			DueDate:        due,
			AssignedTo:     actor,
		}
		if err := p.store.CreateTask(ctx, task); err != nil {
			log.Warn("pipeline: failed to create task", zap.Int("index", i), zap.Error(err))
			p.audit.Warning(ctx, msg.ID, fmt.Sprintf("Failed to create task %d", i+1), map[string]any{
				"title": item,
				"error": err.Error(),
			})
			continue
		}
		ids = append(ids, task.ID)
		if p.mirror != nil {
			if err := p.mirror.Task(ctx, res.Deal, task); err != nil {
				p.audit.Warning(ctx, msg.ID, "Failed to mirror task", map[string]any{"task_id": task.ID, "error": err.Error()})
			}
		}
	}
	if len(ids) > 0 {
		p.audit.Success(ctx, msg.ID, "Created tasks", map[string]any{"count": len(ids)})
	}
	return ids
}

func (p *Pipeline) mirrorCreated(ctx context.Context, msgID string, res *routing.Result) {
	if p.mirror == nil {
		return
	}
	if res.OrganizationCreated {
		if err := p.mirror.Organization(ctx, res.Organization); err != nil {
			p.audit.Warning(ctx, msgID, "Failed to mirror organization", map[string]any{"error": err.Error()})
		}
	}
	if res.DealCreated {
		if err := p.mirror.Deal(ctx, res.Organization, res.Deal); err != nil {
			p.audit.Warning(ctx, msgID, "Failed to mirror deal", map[string]any{"error": err.Error()})
		}
	}
}

func firstDate(d model.ExtractedData) *time.Time {
	if len(d.Dates) == 0 {
		return nil
	}
	t := d.Dates[0]
	return &t
}
