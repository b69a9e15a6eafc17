// Package pipeline sequences normalization, extraction, classification and
// routing for inbound messages and issues the resulting CRM writes.
package pipeline

import (
	"context"
	"time"

	"github.com/sells-group/intake-cli/internal/audit"
	"github.com/sells-group/intake-cli/internal/classify"
	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/routing"
	"github.com/sells-group/intake-cli/internal/settings"
	"github.com/sells-group/intake-cli/internal/store"
	"github.com/sells-group/intake-cli/internal/thread"
)

// DefaultBatchLimit is the most messages one batch run considers.
const DefaultBatchLimit = 100

// DefaultMaxTasks caps tasks created from one message's action items.
const DefaultMaxTasks = 5

// MinContentLength is the shortest normalized content worth routing.
const MinContentLength = 10

// BatchLockKey is the lock name guarding overlapping batch runs.
const BatchLockKey = "intake:batch"

// Resolver builds the settings for one run.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (settings.Resolved, error)
}

// Mirror copies newly created CRM records to an external system.
type Mirror interface {
	Organization(ctx context.Context, org *model.Organization) error
	Deal(ctx context.Context, org *model.Organization, deal *model.Deal) error
	Amount(ctx context.Context, deal *model.Deal, amount float64) error
	Note(ctx context.Context, deal *model.Deal, note *model.Note) error
	Task(ctx context.Context, deal *model.Deal, task *model.Task) error
}

// ReviewQueue receives messages no routing strategy could place.
type ReviewQueue interface {
	Submit(ctx context.Context, msg *model.InboundMessage, analysis model.Analysis) (string, error)
}

// Locker guards a batch run. Acquire returns a release func, or an error
// when the lock is held elsewhere.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// Pipeline is the message orchestrator.
type Pipeline struct {
	store      store.Store
	resolver   Resolver
	router     *routing.Router
	dedup      *thread.Deduplicator
	classifier *classify.Classifier
	audit      *audit.Recorder
	mirror     Mirror
	review     ReviewQueue
	locker     Locker
	batchLimit int
	systemUser string
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClassifier replaces the default keyword classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

// WithRouter replaces the default router.
func WithRouter(r *routing.Router) Option {
	return func(p *Pipeline) { p.router = r }
}

// WithMirror enables mirroring of created records.
func WithMirror(m Mirror) Option {
	return func(p *Pipeline) { p.mirror = m }
}

// WithReviewQueue enables manual-review submission for unrouted messages.
func WithReviewQueue(q ReviewQueue) Option {
	return func(p *Pipeline) { p.review = q }
}

// WithLocker guards ProcessUnprocessed against overlapping runs.
func WithLocker(l Locker) Option {
	return func(p *Pipeline) { p.locker = l }
}

// WithBatchLimit sets how many unprocessed messages a batch considers.
func WithBatchLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchLimit = n
		}
	}
}

// WithSystemUser sets the actor used when a caller supplies none.
func WithSystemUser(id string) Option {
	return func(p *Pipeline) {
		if id != "" {
			p.systemUser = id
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline over st with settings from resolver.
func New(st store.Store, resolver Resolver, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      st,
		resolver:   resolver,
		router:     routing.New(st),
		dedup:      thread.New(st),
		classifier: classify.Default(),
		audit:      audit.NewRecorder(st),
		batchLimit: DefaultBatchLimit,
		systemUser: "system",
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pipeline) actor(userID string) string {
	if userID == "" {
		return p.systemUser
	}
	return userID
}
