package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/intake-cli/internal/model"
)

// ErrNotFound is returned by single-record lookups that match nothing.
var ErrNotFound = eris.New("store: not found")

// MaxNoteBatch is the largest id list GetNotesByIDs accepts.
const MaxNoteBatch = 10

// MessageFilter specifies criteria for listing messages.
type MessageFilter struct {
	Processed *bool  `json:"processed,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the intake pipeline.
type Store interface {
	// Messages
	InsertMessage(ctx context.Context, msg *model.InboundMessage) error
	GetMessage(ctx context.Context, id string) (*model.InboundMessage, error)
	ListMessages(ctx context.Context, filter MessageFilter) ([]model.InboundMessage, error)
	SaveAnalysis(ctx context.Context, id string, analysis model.Analysis) error
	IncrementRoutingAttempts(ctx context.Context, id string) (int, error)
	MarkProcessed(ctx context.Context, id string, completion model.Completion) error
	MarkSkipped(ctx context.Context, id string) error

	// Audit
	AppendAudit(ctx context.Context, messageID string, entry model.AuditEntry) error
	ListAudit(ctx context.Context, messageID string) (model.AuditTrail, error)

	// Organizations
	CreateOrganization(ctx context.Context, org *model.Organization) error
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	FindOrganizationByName(ctx context.Context, name string) (*model.Organization, error)
	FindOrganizationByEmail(ctx context.Context, email string) (*model.Organization, error)
	ListOrganizations(ctx context.Context) ([]model.Organization, error)
	SetOrganizationSalesforceID(ctx context.Context, id, sfID string) error

	// Deals
	CreateDeal(ctx context.Context, deal *model.Deal) error
	GetDeal(ctx context.Context, id string) (*model.Deal, error)
	ListDealsByOrganization(ctx context.Context, orgID string) ([]model.Deal, error)
	UpdateDealAmount(ctx context.Context, id string, amount float64) error
	SetDealSalesforceID(ctx context.Context, id, sfID string) error

	// Notes and tasks
	CreateNote(ctx context.Context, note *model.Note) error
	GetNotesByIDs(ctx context.Context, ids []string) ([]model.Note, error)
	CreateTask(ctx context.Context, task *model.Task) error
	ListTasksByDeal(ctx context.Context, dealID string) ([]model.Task, error)

	// Settings
	GetSetting(ctx context.Context, scope, key string) ([]byte, error)
	SetSetting(ctx context.Context, scope, key string, value []byte) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// UnprocessedFilter lists up to limit unprocessed messages, newest first.
func UnprocessedFilter(limit int) MessageFilter {
	f := false
	return MessageFilter{Processed: &f, Limit: limit}
}

// ThreadFilter lists processed messages of one thread.
func ThreadFilter(threadID string) MessageFilter {
	t := true
	return MessageFilter{Processed: &t, ThreadID: threadID, Limit: 1000}
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
