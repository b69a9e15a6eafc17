package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/config"
)

// Guard runs calls to one external service through a breaker, retrying
// each call per its policy. A retried call counts once against the breaker.
type Guard struct {
	name    string
	breaker *Breaker
	policy  RetryPolicy
}

// NewGuard creates a Guard for the named service.
func NewGuard(name string, policy RetryPolicy, cfg BreakerConfig) *Guard {
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(from, to State) {
			zap.L().Warn("resilience: circuit state changed",
				zap.String("service", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}
	return &Guard{name: name, breaker: NewBreaker(cfg), policy: policy}
}

// GuardFromConfig builds the Salesforce mirror guard from configuration.
func GuardFromConfig(c config.SalesforceConfig) *Guard {
	p := DefaultRetryPolicy()
	if c.RetryAttempts > 0 {
		p.Attempts = c.RetryAttempts
	}
	return NewGuard("salesforce", p, BreakerConfig{
		Threshold: c.BreakerThreshold,
		Cooldown:  time.Duration(c.BreakerCooldownSecs) * time.Second,
	})
}

// Do runs fn through the breaker with retries.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return g.breaker.Do(ctx, func(ctx context.Context) error {
		return Retry(ctx, g.policy, g.name+"."+op, fn)
	})
}

// State reports the breaker state.
func (g *Guard) State() State {
	return g.breaker.State()
}
