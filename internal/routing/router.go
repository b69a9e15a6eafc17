// Package routing resolves a message to an organization and deal through a
// cascade of strategies backed by fuzzy name matching.
package routing

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/settings"
)

// ErrNoRoute is returned when no strategy proposes an organization.
var ErrNoRoute = eris.New("routing: no strategy produced an organization")

// Deal defaults used when the resolved settings leave them unset.
const (
	DefaultDealStage   = "Prospecting"
	DefaultCloseMonths = 6
)

// Store is the subset of the record store the router reads and writes.
type Store interface {
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	FindOrganizationByName(ctx context.Context, name string) (*model.Organization, error)
	FindOrganizationByEmail(ctx context.Context, email string) (*model.Organization, error)
	ListOrganizations(ctx context.Context) ([]model.Organization, error)
	CreateOrganization(ctx context.Context, org *model.Organization) error
	ListDealsByOrganization(ctx context.Context, orgID string) ([]model.Deal, error)
	CreateDeal(ctx context.Context, deal *model.Deal) error
}

// Input is a normalized message as the router sees it.
type Input struct {
	MessageID string
	Subject   string // prefix-stripped
	Body      string // cleaned; the recovered original for forwards
	RawBody   string // uncleaned text of Body, signatures intact
	Wrapper   string // forwarding wrapper text, if any
	Sender    model.Address
	Actor     string
	Now       time.Time
}

// Result is a successful routing decision.
type Result struct {
	Organization        *model.Organization
	Deal                *model.Deal
	Method              model.RoutingMethod
	Confidence          float64
	MatchScore          float64
	OrganizationCreated bool
	DealCreated         bool
}

// Router runs strategies in order and stops at the first proposal.
type Router struct {
	store      Store
	matcher    *Matcher
	strategies []Strategy
}

// Option configures a Router.
type Option func(*Router)

// WithMatcher replaces the default Levenshtein matcher.
func WithMatcher(m *Matcher) Option {
	return func(r *Router) { r.matcher = m }
}

// WithStrategies replaces the default pattern, metadata, context cascade.
func WithStrategies(s ...Strategy) Option {
	return func(r *Router) { r.strategies = s }
}

// New creates a Router over st.
func New(st Store, opts ...Option) *Router {
	r := &Router{
		store:   st,
		matcher: NewMatcher(nil),
		strategies: []Strategy{
			PatternStrategy{},
			MetadataStrategy{store: st},
			ContextStrategy{},
		},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Route resolves in to an organization and deal. Strategies other than
// pattern run only when enabled in cfg. Later strategies are not consulted
// once one proposes an organization. It returns ErrNoRoute when none does.
func (r *Router) Route(ctx context.Context, in Input, cfg settings.Resolved) (*Result, error) {
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	for _, s := range r.strategies {
		method := s.Method()
		if method != model.RoutingPattern && !cfg.MethodEnabled(method) {
			continue
		}
		c, err := s.Attempt(ctx, in, cfg)
		if err != nil {
			return nil, eris.Wrapf(err, "routing: %s strategy", method)
		}
		if c == nil {
			continue
		}
		return r.resolve(ctx, in, c, cfg)
	}
	return nil, ErrNoRoute
}

func (r *Router) resolve(ctx context.Context, in Input, c *Candidate, cfg settings.Resolved) (*Result, error) {
	res := &Result{Method: c.Method, Confidence: c.Confidence}

	org, created, score, err := r.resolveOrganization(ctx, in, c, cfg)
	if err != nil {
		return nil, err
	}
	res.Organization, res.OrganizationCreated, res.MatchScore = org, created, score

	dealName := c.DealName
	if dealName == "" {
		dealName = defaultDealName(in.Subject, org.Name)
	}
	deal, dealCreated, err := r.resolveDeal(ctx, in, c, org, dealName, cfg)
	if err != nil {
		return nil, err
	}
	res.Deal, res.DealCreated = deal, dealCreated

	zap.L().Info("routing: resolved message",
		zap.String("message_id", in.MessageID),
		zap.String("organization_id", org.ID),
		zap.String("deal_id", deal.ID),
		zap.String("method", string(c.Method)),
		zap.Float64("confidence", c.Confidence),
		zap.Bool("organization_created", created),
		zap.Bool("deal_created", dealCreated),
	)
	return res, nil
}

// resolveOrganization tries an exact name lookup, then the best fuzzy
// match over all organizations, then creates one.
func (r *Router) resolveOrganization(ctx context.Context, in Input, c *Candidate, cfg settings.Resolved) (*model.Organization, bool, float64, error) {
	if c.OrganizationID != "" {
		org, err := r.store.GetOrganization(ctx, c.OrganizationID)
		if err != nil {
			return nil, false, 0, eris.Wrapf(err, "routing: get organization %s", c.OrganizationID)
		}
		return org, false, 1, nil
	}

	existing, err := r.store.FindOrganizationByName(ctx, c.OrganizationName)
	if err != nil {
		return nil, false, 0, eris.Wrap(err, "routing: find organization by name")
	}
	if existing != nil {
		return existing, false, 1, nil
	}

	orgs, err := r.store.ListOrganizations(ctx)
	if err != nil {
		return nil, false, 0, eris.Wrap(err, "routing: list organizations")
	}
	names := make([]string, len(orgs))
	for i, o := range orgs {
		names[i] = o.Name
	}

	threshold := cfg.FuzzyThreshold
	if c.Method == model.RoutingContext {
		threshold = cfg.ContextAcceptThreshold
	}
	m := r.matcher.Best(c.OrganizationName, names)
	if m.Accepted(threshold) {
		return &orgs[m.Index], false, m.Score, nil
	}
	if c.Method == model.RoutingContext && m.Index >= 0 && m.Score >= cfg.ContextThreshold {
		zap.L().Info("routing: context match below acceptance threshold, creating organization",
			zap.String("message_id", in.MessageID),
			zap.String("candidate", c.OrganizationName),
			zap.String("nearest", names[m.Index]),
			zap.Float64("score", m.Score),
		)
	}

	org := &model.Organization{
		Name:       c.OrganizationName,
		Email:      c.Email,
		Status:     "active",
		CreatedBy:  in.Actor,
		Provenance: provenance(in, c),
	}
	if err := r.store.CreateOrganization(ctx, org); err != nil {
		return nil, false, 0, eris.Wrap(err, "routing: create organization")
	}
	return org, true, m.Score, nil
}

// resolveDeal matches within the organization's own deals only.
func (r *Router) resolveDeal(ctx context.Context, in Input, c *Candidate, org *model.Organization, name string, cfg settings.Resolved) (*model.Deal, bool, error) {
	deals, err := r.store.ListDealsByOrganization(ctx, org.ID)
	if err != nil {
		return nil, false, eris.Wrapf(err, "routing: list deals for %s", org.ID)
	}
	names := make([]string, len(deals))
	for i, d := range deals {
		names[i] = d.Name
	}
	if m := r.matcher.Best(name, names); m.Accepted(cfg.FuzzyThreshold) {
		return &deals[m.Index], false, nil
	}

	stage := cfg.DealStage
	if stage == "" {
		stage = DefaultDealStage
	}
	months := cfg.DefaultCloseMonths
	if months <= 0 {
		months = DefaultCloseMonths
	}
	closeDate := in.Now.AddDate(0, months, 0)
	deal := &model.Deal{
		OrganizationID:    org.ID,
		Name:              name,
		Stage:             stage,
		Owner:             in.Actor,
		ExpectedCloseDate: &closeDate,
		Provenance:        provenance(in, c),
	}
	if err := r.store.CreateDeal(ctx, deal); err != nil {
		return nil, false, eris.Wrap(err, "routing: create deal")
	}
	return deal, true, nil
}

func provenance(in Input, c *Candidate) *model.Provenance {
	return &model.Provenance{
		RoutingMethod:     c.Method,
		RoutingConfidence: c.Confidence,
		SourceMessageID:   in.MessageID,
	}
}

// defaultDealName is the subject, or "<Org> Opportunity" without one.
func defaultDealName(subject, orgName string) string {
	if s := cleanName(subject); s != "" {
		return s
	}
	return strings.TrimSpace(orgName + " Opportunity")
}
