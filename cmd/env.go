package main

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/classify"
	"github.com/sells-group/intake-cli/internal/config"
	"github.com/sells-group/intake-cli/internal/crmsync"
	"github.com/sells-group/intake-cli/internal/lock"
	"github.com/sells-group/intake-cli/internal/pipeline"
	"github.com/sells-group/intake-cli/internal/resilience"
	"github.com/sells-group/intake-cli/internal/review"
	"github.com/sells-group/intake-cli/internal/settings"
	"github.com/sells-group/intake-cli/internal/store"
	"github.com/sells-group/intake-cli/pkg/notion"
	sfpkg "github.com/sells-group/intake-cli/pkg/salesforce"
)

// intakeEnv holds the store, settings provider and pipeline shared by the
// process/serve/messages/settings commands.
type intakeEnv struct {
	Store    store.Store
	Settings *settings.Provider
	Pipeline *pipeline.Pipeline
	Guard    *resilience.Guard // nil unless the CRM mirror is enabled
	redis    *redis.Client
}

// Close releases resources held by the environment.
func (e *intakeEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "intake.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv builds the full pipeline environment. Callers should defer
// env.Close().
func initEnv(ctx context.Context, c *config.Config) (*intakeEnv, error) {
	if err := c.Validate("pipeline"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	env := &intakeEnv{Store: st, Settings: settings.NewProvider(st, c)}

	opts := []pipeline.Option{
		pipeline.WithBatchLimit(c.Batch.Limit),
		pipeline.WithSystemUser(c.Intake.SystemUser),
	}

	if c.Classify.LexiconPath != "" {
		lex, err := classify.LoadLexicon(c.Classify.LexiconPath)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "load lexicon")
		}
		cl, err := classify.New(lex)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "build classifier")
		}
		opts = append(opts, pipeline.WithClassifier(cl))
		zap.L().Info("custom lexicon loaded", zap.String("path", c.Classify.LexiconPath))
	}

	if c.Salesforce.Enabled {
		sf, err := initSalesforce(c.Salesforce)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Guard = resilience.GuardFromConfig(c.Salesforce)
		opts = append(opts, pipeline.WithMirror(crmsync.New(sf, env.Guard, st)))
		zap.L().Info("salesforce mirror enabled")
	} else {
		zap.L().Debug("salesforce mirror disabled")
	}

	if c.Notion.Token != "" {
		nc := notion.NewClient(c.Notion.Token)
		opts = append(opts, pipeline.WithReviewQueue(review.NewQueue(nc, c.Notion.ReviewDB)))
		zap.L().Info("notion review queue enabled")
	}

	if c.Redis.URL != "" {
		locker, rdb, err := lock.Connect(c.Redis.URL, time.Duration(c.Redis.LockTTLSecs)*time.Second)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.redis = rdb
		opts = append(opts, pipeline.WithLocker(locker))
		zap.L().Info("redis batch lock enabled")
	}

	env.Pipeline = pipeline.New(st, env.Settings, opts...)
	return env, nil
}

func initSalesforce(c config.SalesforceConfig) (sfpkg.Client, error) {
	pemData, err := os.ReadFile(c.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	client, err := sfpkg.Connect(sfpkg.Creds{
		LoginURL: c.LoginURL,
		Username: c.Username,
		ClientID: c.ClientID,
		KeyPEM:   string(pemData),
	}, sfpkg.WithRateLimit(c.RateLimit))
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}
	return client, nil
}
