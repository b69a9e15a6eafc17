package routing

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/settings"
)

// Candidate is what a strategy proposes: either an existing organization id
// or a name to resolve through the matcher.
type Candidate struct {
	Method           model.RoutingMethod
	Confidence       float64
	OrganizationID   string
	OrganizationName string
	DealName         string
	Email            string // stored on an organization created from this candidate
}

// Strategy is one step of the routing cascade. Attempt returns nil when
// the strategy has nothing to propose.
type Strategy interface {
	Method() model.RoutingMethod
	Attempt(ctx context.Context, in Input, cfg settings.Resolved) (*Candidate, error)
}

var (
	reOrgField  = regexp.MustCompile(`(?i)\b(?:Account|Company|Client|Customer|Organization|Org)\s*(?::|=|\s+is\s+)\s*([^\n,;|]+)`)
	reDealField = regexp.MustCompile(`(?i)\b(?:Opportunity|Deal|Project|Engagement|Lead|Proposal)\s*(?::|=|\s+is\s+)\s*([^\n,;|]+)`)
)

// PatternStrategy reads explicit "Account: X" / "Opportunity: Y" fields.
type PatternStrategy struct{}

// Method implements Strategy.
func (PatternStrategy) Method() model.RoutingMethod { return model.RoutingPattern }

// Attempt scans the subject, the forwarding wrapper and the body in that
// order. The first match per field wins.
func (PatternStrategy) Attempt(_ context.Context, in Input, _ settings.Resolved) (*Candidate, error) {
	text := in.Subject + "\n" + in.Wrapper + "\n" + in.Body

	org := firstCapture(reOrgField, text)
	if org == "" {
		return nil, nil
	}
	c := &Candidate{
		Method:           model.RoutingPattern,
		Confidence:       model.ConfidencePatternNoDeal,
		OrganizationName: org,
		DealName:         firstCapture(reDealField, text),
	}
	if c.DealName != "" {
		c.Confidence = model.ConfidencePattern
	}
	return c, nil
}

func firstCapture(re *regexp.Regexp, text string) string {
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if name := cleanName(m[1]); name != "" {
			return name
		}
	}
	return ""
}

// MetadataStrategy derives the organization from the sender: a stored
// organization email, then the sender domain, then the subject.
type MetadataStrategy struct {
	store Store
}

// Method implements Strategy.
func (MetadataStrategy) Method() model.RoutingMethod { return model.RoutingMetadata }

// Attempt implements Strategy.
func (s MetadataStrategy) Attempt(ctx context.Context, in Input, cfg settings.Resolved) (*Candidate, error) {
	c := &Candidate{Method: model.RoutingMetadata, Confidence: model.ConfidenceMetadata}

	if in.Sender.Email != "" {
		org, err := s.store.FindOrganizationByEmail(ctx, in.Sender.Email)
		if err != nil {
			return nil, eris.Wrap(err, "routing: find organization by email")
		}
		if org != nil {
			c.OrganizationID, c.OrganizationName = org.ID, org.Name
			return c, nil
		}
	}

	domain := in.Sender.Domain()
	usable := usableDomain(domain, cfg.InternalDomains, cfg.OrgDomain)
	if usable {
		orgs, err := s.store.ListOrganizations(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "routing: list organizations")
		}
		for _, org := range orgs {
			if org.Email != "" && strings.Contains(strings.ToLower(org.Email), domain) {
				c.OrganizationID, c.OrganizationName = org.ID, org.Name
				return c, nil
			}
		}
	}

	c.OrganizationName = derivedName(in, domain, usable)
	if c.OrganizationName == "" {
		return nil, nil
	}
	if usable {
		c.Email = in.Sender.Email
	}
	return c, nil
}

// ContextStrategy looks for an organization in signature-like lines and
// falls back to the subject or sender domain.
type ContextStrategy struct{}

// Method implements Strategy.
func (ContextStrategy) Method() model.RoutingMethod { return model.RoutingContext }

// Attempt implements Strategy.
func (ContextStrategy) Attempt(_ context.Context, in Input, cfg settings.Resolved) (*Candidate, error) {
	domain := in.Sender.Domain()
	usable := usableDomain(domain, cfg.InternalDomains, cfg.OrgDomain)

	name := nameFromSignature(in.RawBody)
	if name == "" {
		name = nameFromSignature(in.Body)
	}
	if name == "" {
		name = derivedName(in, domain, usable)
	}
	if name == "" {
		return nil, nil
	}
	c := &Candidate{
		Method:           model.RoutingContext,
		Confidence:       model.ConfidenceContext,
		OrganizationName: name,
	}
	if usable {
		c.Email = in.Sender.Email
	}
	return c, nil
}

func derivedName(in Input, domain string, usableDomain bool) string {
	if name := nameFromSubject(in.Subject); name != "" {
		return name
	}
	if usableDomain {
		return nameFromDomain(domain)
	}
	return ""
}
