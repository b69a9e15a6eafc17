// Package settings resolves the routing and intake values a pipeline run
// uses: a per-user override, then the global override, then the configured
// default.
package settings

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/config"
	"github.com/sells-group/intake-cli/internal/model"
)

// GlobalScope is the scope of organization-wide overrides.
const GlobalScope = "global"

// Setting keys.
const (
	KeyFuzzyThreshold         = "fuzzy_threshold"
	KeyContextThreshold       = "context_threshold"
	KeyContextAcceptThreshold = "context_accept_threshold"
	KeyRoutingMethods         = "routing_methods"
	KeySubjectPrefixes        = "subject_prefixes"
	KeyInternalDomains        = "internal_domains"
	KeyInternalAddresses      = "internal_addresses"
)

// Resolved is the fully resolved configuration for one pipeline run. It is
// built once and passed down; nothing below the orchestrator reads config.
type Resolved struct {
	FuzzyThreshold         float64
	ContextThreshold       float64
	ContextAcceptThreshold float64
	Methods                []model.RoutingMethod
	SubjectPrefixes        []string
	InternalDomains        []string
	InternalAddresses      []string

	IntakeAddress      string
	OrgDomain          string
	DealStage          string
	DefaultCloseMonths int
	MaxTasks           int
}

// MethodEnabled reports whether m is in the enabled routing methods.
func (r Resolved) MethodEnabled(m model.RoutingMethod) bool {
	return slices.Contains(r.Methods, m)
}

// Store is the subset of the record store holding override rows.
type Store interface {
	GetSetting(ctx context.Context, scope, key string) ([]byte, error)
	SetSetting(ctx context.Context, scope, key string, value []byte) error
}

type field struct {
	decode   func(raw []byte, r *Resolved) error
	validate func(raw []byte) error
}

// into decodes raw into a fresh T and hands it to set only when the whole
// value parsed.
func into[T any](set func(r *Resolved, v T)) func(raw []byte, r *Resolved) error {
	return func(raw []byte, r *Resolved) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		set(r, v)
		return nil
	}
}

var fields = map[string]field{
	KeyFuzzyThreshold: {
		decode:   into(func(r *Resolved, v float64) { r.FuzzyThreshold = v }),
		validate: validateThreshold,
	},
	KeyContextThreshold: {
		decode:   into(func(r *Resolved, v float64) { r.ContextThreshold = v }),
		validate: validateThreshold,
	},
	KeyContextAcceptThreshold: {
		decode:   into(func(r *Resolved, v float64) { r.ContextAcceptThreshold = v }),
		validate: validateThreshold,
	},
	KeyRoutingMethods: {
		decode:   into(func(r *Resolved, v []string) { r.Methods = parseMethods(v) }),
		validate: validateMethods,
	},
	KeySubjectPrefixes: {
		decode:   into(func(r *Resolved, v []string) { r.SubjectPrefixes = v }),
		validate: validateStrings,
	},
	KeyInternalDomains: {
		decode:   into(func(r *Resolved, v []string) { r.InternalDomains = v }),
		validate: validateStrings,
	},
	KeyInternalAddresses: {
		decode:   into(func(r *Resolved, v []string) { r.InternalAddresses = v }),
		validate: validateStrings,
	},
}

// Keys returns the overridable setting keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Provider resolves settings against the store with config defaults.
type Provider struct {
	store    Store
	defaults Resolved
}

// NewProvider creates a Provider whose last tier comes from cfg.
func NewProvider(st Store, cfg *config.Config) *Provider {
	return &Provider{store: st, defaults: Defaults(cfg)}
}

// Defaults builds the hardcoded-default tier from configuration.
func Defaults(cfg *config.Config) Resolved {
	return Resolved{
		FuzzyThreshold:         cfg.Routing.FuzzyThreshold,
		ContextThreshold:       cfg.Routing.ContextThreshold,
		ContextAcceptThreshold: cfg.Routing.ContextAcceptThreshold,
		Methods:                parseMethods(cfg.Routing.Methods),
		SubjectPrefixes:        slices.Clone(cfg.Intake.SubjectPrefixes),
		InternalDomains:        slices.Clone(cfg.Intake.InternalDomains),
		InternalAddresses:      slices.Clone(cfg.Intake.InternalAddresses),
		IntakeAddress:          cfg.Intake.Address,
		OrgDomain:              cfg.Intake.OrgDomain,
		DealStage:              cfg.Routing.DealStage,
		DefaultCloseMonths:     cfg.Routing.DefaultCloseMonths,
		MaxTasks:               cfg.Routing.MaxTasks,
	}
}

// Resolve builds the Resolved settings for userID. Each key takes the
// user's override if present, else the global override, else the default.
// An empty userID skips the user tier. Unreadable override values are
// logged and ignored.
func (p *Provider) Resolve(ctx context.Context, userID string) (Resolved, error) {
	r := p.defaults
	r.Methods = slices.Clone(r.Methods)
	r.SubjectPrefixes = slices.Clone(r.SubjectPrefixes)
	r.InternalDomains = slices.Clone(r.InternalDomains)
	r.InternalAddresses = slices.Clone(r.InternalAddresses)

	scopes := []string{GlobalScope}
	if userID != "" && userID != GlobalScope {
		scopes = []string{userID, GlobalScope}
	}

	for _, key := range Keys() {
		for _, scope := range scopes {
			raw, err := p.store.GetSetting(ctx, scope, key)
			if err != nil {
				return Resolved{}, eris.Wrapf(err, "settings: resolve %s", key)
			}
			if raw == nil {
				continue
			}
			if err := fields[key].decode(raw, &r); err != nil {
				zap.L().Warn("settings: ignoring malformed override",
					zap.String("scope", scope),
					zap.String("key", key),
					zap.Error(err),
				)
				continue
			}
			break
		}
	}
	return r, nil
}

// Get returns the raw JSON override stored for key in scope, or nil.
func (p *Provider) Get(ctx context.Context, scope, key string) (json.RawMessage, error) {
	if _, ok := fields[key]; !ok {
		return nil, eris.Errorf("settings: unknown key %q", key)
	}
	raw, err := p.store.GetSetting(ctx, scope, key)
	if err != nil {
		return nil, eris.Wrapf(err, "settings: get %s/%s", scope, key)
	}
	return raw, nil
}

// Set validates and stores a JSON override for key in scope.
func (p *Provider) Set(ctx context.Context, scope, key string, value json.RawMessage) error {
	f, ok := fields[key]
	if !ok {
		return eris.Errorf("settings: unknown key %q", key)
	}
	if strings.TrimSpace(scope) == "" {
		return eris.New("settings: scope is required")
	}
	if err := f.validate(value); err != nil {
		return eris.Wrapf(err, "settings: invalid value for %s", key)
	}
	if err := p.store.SetSetting(ctx, scope, key, value); err != nil {
		return eris.Wrapf(err, "settings: set %s/%s", scope, key)
	}
	return nil
}

func parseMethods(names []string) []model.RoutingMethod {
	out := make([]model.RoutingMethod, 0, len(names))
	for _, n := range names {
		m := model.RoutingMethod(strings.ToLower(strings.TrimSpace(n)))
		if m == "" || slices.Contains(out, m) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func validateThreshold(raw []byte) error {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	if v <= 0 || v > 1 {
		return eris.Errorf("threshold %v outside (0, 1]", v)
	}
	return nil
}

func validateMethods(raw []byte) error {
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return err
	}
	for _, m := range parseMethods(names) {
		switch m {
		case model.RoutingPattern, model.RoutingMetadata, model.RoutingContext:
		default:
			return eris.Errorf("unknown routing method %q", m)
		}
	}
	return nil
}

func validateStrings(raw []byte) error {
	var v []string
	return json.Unmarshal(raw, &v)
}
