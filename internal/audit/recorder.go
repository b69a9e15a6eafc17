// Package audit appends processing-stage outcomes to a message's trail.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/model"
)

// Appender persists one audit entry.
type Appender interface {
	AppendAudit(ctx context.Context, messageID string, entry model.AuditEntry) error
}

// Recorder writes audit entries. Write failures are logged and swallowed
// so that auditing never aborts message processing.
type Recorder struct {
	store Appender
	now   func() time.Time
}

// NewRecorder creates a Recorder backed by st.
func NewRecorder(st Appender) *Recorder {
	return &Recorder{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// Record appends one entry. Nil detail values are dropped.
func (r *Recorder) Record(ctx context.Context, messageID string, status model.AuditStatus, msg string, details map[string]any) {
	entry := model.AuditEntry{
		Timestamp: r.now(),
		Status:    status,
		Message:   msg,
		Details:   model.CompactDetails(details),
	}
	if err := r.store.AppendAudit(ctx, messageID, entry); err != nil {
		zap.L().Warn("audit: failed to append entry",
			zap.String("message_id", messageID),
			zap.String("status", string(status)),
			zap.String("entry", msg),
			zap.Error(err),
		)
	}
}

// Info records an informational entry.
func (r *Recorder) Info(ctx context.Context, messageID, msg string, details map[string]any) {
	r.Record(ctx, messageID, model.AuditInfo, msg, details)
}

// Success records a successful stage.
func (r *Recorder) Success(ctx context.Context, messageID, msg string, details map[string]any) {
	r.Record(ctx, messageID, model.AuditSuccess, msg, details)
}

// Warning records a stage that failed without aborting processing.
func (r *Recorder) Warning(ctx context.Context, messageID, msg string, details map[string]any) {
	r.Record(ctx, messageID, model.AuditWarning, msg, details)
}

// Skipped records an input-quality skip.
func (r *Recorder) Skipped(ctx context.Context, messageID, msg string, details map[string]any) {
	r.Record(ctx, messageID, model.AuditSkipped, msg, details)
}

// Failure records a routing exhaustion or unexpected error.
func (r *Recorder) Failure(ctx context.Context, messageID, msg string, details map[string]any) {
	r.Record(ctx, messageID, model.AuditFailure, msg, details)
}
