package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/intake-cli/internal/normalize"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Intake     IntakeConfig     `yaml:"intake" mapstructure:"intake"`
	Routing    RoutingConfig    `yaml:"routing" mapstructure:"routing"`
	Classify   ClassifyConfig   `yaml:"classify" mapstructure:"classify"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the record store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// IntakeConfig describes the shared intake mailbox and the organization's
// own staff, whose contacts are never treated as counterparties.
type IntakeConfig struct {
	Address           string   `yaml:"address" mapstructure:"address"`
	OrgDomain         string   `yaml:"org_domain" mapstructure:"org_domain"`
	SubjectPrefixes   []string `yaml:"subject_prefixes" mapstructure:"subject_prefixes"`
	InternalDomains   []string `yaml:"internal_domains" mapstructure:"internal_domains"`
	InternalAddresses []string `yaml:"internal_addresses" mapstructure:"internal_addresses"`
	SystemUser        string   `yaml:"system_user" mapstructure:"system_user"`
}

// RoutingConfig holds the hardcoded-default tier of the routing settings.
type RoutingConfig struct {
	FuzzyThreshold         float64  `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	ContextThreshold       float64  `yaml:"context_threshold" mapstructure:"context_threshold"`
	ContextAcceptThreshold float64  `yaml:"context_accept_threshold" mapstructure:"context_accept_threshold"`
	Methods                []string `yaml:"methods" mapstructure:"methods"`
	DefaultCloseMonths     int      `yaml:"default_close_months" mapstructure:"default_close_months"`
	DealStage              string   `yaml:"deal_stage" mapstructure:"deal_stage"`
	MaxTasks               int      `yaml:"max_tasks" mapstructure:"max_tasks"`
}

// ClassifyConfig points at an optional keyword lexicon override.
type ClassifyConfig struct {
	LexiconPath string `yaml:"lexicon_path" mapstructure:"lexicon_path"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Limit            int `yaml:"limit" mapstructure:"limit"`
	PollIntervalSecs int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
}

// SalesforceConfig holds Salesforce JWT auth settings for the CRM mirror.
type SalesforceConfig struct {
	Enabled   bool    `yaml:"enabled" mapstructure:"enabled"`
	ClientID  string  `yaml:"client_id" mapstructure:"client_id"`
	Username  string  `yaml:"username" mapstructure:"username"`
	KeyPath   string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL  string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`

	RetryAttempts       int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// NotionConfig holds Notion credentials for the manual review queue.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReviewDB string `yaml:"review_db" mapstructure:"review_db"`
}

// RedisConfig configures the batch lock.
type RedisConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	LockTTLSecs int    `yaml:"lock_ttl_secs" mapstructure:"lock_ttl_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "intake.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.limit", 100)
	v.SetDefault("batch.poll_interval_secs", 0)
	v.SetDefault("intake.address", "")
	v.SetDefault("intake.org_domain", "")
	v.SetDefault("intake.subject_prefixes", normalize.DefaultSubjectPrefixes)
	v.SetDefault("intake.internal_domains", []string{})
	v.SetDefault("intake.internal_addresses", []string{})
	v.SetDefault("intake.system_user", "system")
	v.SetDefault("routing.fuzzy_threshold", 0.8)
	v.SetDefault("routing.context_threshold", 0.6)
	v.SetDefault("routing.context_accept_threshold", 0.7)
	v.SetDefault("routing.methods", []string{"pattern"})
	v.SetDefault("routing.default_close_months", 6)
	v.SetDefault("routing.deal_stage", "Prospecting")
	v.SetDefault("routing.max_tasks", 5)
	v.SetDefault("classify.lexicon_path", "")
	v.SetDefault("salesforce.enabled", false)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_limit", 5.0)
	v.SetDefault("salesforce.retry_attempts", 3)
	v.SetDefault("salesforce.breaker_threshold", 5)
	v.SetDefault("salesforce.breaker_cooldown_secs", 60)
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.review_db", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.lock_ttl_secs", 900)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Mode "pipeline"
// covers process/serve; "ingest" only needs the store.
func (c *Config) Validate(mode string) error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for postgres")
	}

	if mode != "pipeline" {
		return nil
	}

	r := c.Routing
	for name, v := range map[string]float64{
		"routing.fuzzy_threshold":          r.FuzzyThreshold,
		"routing.context_threshold":        r.ContextThreshold,
		"routing.context_accept_threshold": r.ContextAcceptThreshold,
	} {
		if v <= 0 || v > 1 {
			return eris.Errorf("config: %s must be in (0, 1], got %v", name, v)
		}
	}
	if c.Batch.Limit <= 0 {
		return eris.New("config: batch.limit must be positive")
	}
	if c.Salesforce.Enabled && (c.Salesforce.ClientID == "" || c.Salesforce.KeyPath == "") {
		return eris.New("config: salesforce.client_id and salesforce.key_path are required when the mirror is enabled")
	}
	if (c.Notion.Token == "") != (c.Notion.ReviewDB == "") {
		return eris.New("config: notion.token and notion.review_db must be set together")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
