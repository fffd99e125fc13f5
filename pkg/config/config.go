package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Logistics    LogisticsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, _, err := cfg.Logistics.Cutoff(); err != nil {
		return nil, err
	}
	if _, err := cfg.Logistics.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOCKFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"STOCKFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOCKFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOCKFLOW_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"STOCKFLOW_LOG_FORMAT" default:"json"`
	// Version is stamped on every log line; set it from the build.
	Version string `envconfig:"STOCKFLOW_APP_VERSION" default:"dev"`
}

// ConsoleLogs reports whether logs should be rendered for a terminal.
func (a AppConfig) ConsoleLogs() bool {
	return strings.EqualFold(a.LogFormat, "console")
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOCKFLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOCKFLOW_DB_DSN"`
	Driver string `envconfig:"STOCKFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOCKFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"STOCKFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOCKFLOW_DB_USER"`
	LegacyPassword string `envconfig:"STOCKFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOCKFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOCKFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOCKFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOCKFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOCKFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOCKFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STOCKFLOW_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOCKFLOW_REDIS_URL"`
	Address      string        `envconfig:"STOCKFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"STOCKFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOCKFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOCKFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOCKFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOCKFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOCKFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOCKFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string        `envconfig:"STOCKFLOW_JWT_SECRET" required:"true"`
	Issuer            string        `envconfig:"STOCKFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes int           `envconfig:"STOCKFLOW_JWT_EXPIRATION_MINUTES" default:"60"`
	Leeway            time.Duration `envconfig:"STOCKFLOW_JWT_LEEWAY" default:"30s"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `envconfig:"STOCKFLOW_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	AllowCredentials bool          `envconfig:"STOCKFLOW_CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"STOCKFLOW_CORS_MAX_AGE" default:"5m"`
}

// RateLimitConfig caps mutating requests per caller in a fixed window. Zero disables it.
type RateLimitConfig struct {
	Window     time.Duration `envconfig:"STOCKFLOW_RATE_LIMIT_WINDOW" default:"1m"`
	WriteLimit int           `envconfig:"STOCKFLOW_RATE_LIMIT_WRITES" default:"120"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOCKFLOW_AUTO_MIGRATE" default:"false"`
	Idempotency bool `envconfig:"STOCKFLOW_IDEMPOTENCY_ENABLED" default:"true"`
}

// LogisticsConfig holds the dispatch policy shared by the API and workers.
type LogisticsConfig struct {
	CutoffTime string `envconfig:"STOCKFLOW_CUTOFF_TIME" default:"17:00"`
	Timezone   string `envconfig:"STOCKFLOW_LOGISTICS_TIMEZONE" default:"UTC"`
}

// Cutoff parses the HH:MM dispatch cut-off.
func (l LogisticsConfig) Cutoff() (int, int, error) {
	raw := strings.TrimSpace(l.CutoffTime)
	if raw == "" {
		raw = defaultCutoffTime
	}
	parsed, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid %s %q: %w", EnvCutoffTime, raw, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// Location resolves the timezone used to decide same-day or next-day dispatch.
func (l LogisticsConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(l.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", EnvLogisticsTimezone, name, err)
	}
	return loc, nil
}

type GCPConfig struct {
	ProjectID string `envconfig:"STOCKFLOW_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	FulfillmentTopic string `envconfig:"STOCKFLOW_PUBSUB_FULFILLMENT_TOPIC" default:"sf-fulfillment-events"`
	// OrderingEnabled keys messages by aggregate id so one order's events arrive in sequence.
	OrderingEnabled bool `envconfig:"STOCKFLOW_PUBSUB_ORDERING_ENABLED" default:"true"`
	// AutoCreateTopics creates missing topics at startup; meant for the emulator.
	AutoCreateTopics bool `envconfig:"STOCKFLOW_PUBSUB_AUTO_CREATE_TOPICS" default:"false"`
	// TopicOverrides routes an aggregate to its own topic, e.g. "purchase_order:sf-procurement-events".
	TopicOverrides map[string]string `envconfig:"STOCKFLOW_PUBSUB_TOPIC_OVERRIDES"`
}

// TopicFor returns the topic events of aggregate are published to.
func (c PubSubConfig) TopicFor(aggregate string) string {
	if topic := strings.TrimSpace(c.TopicOverrides[aggregate]); topic != "" {
		return topic
	}
	return c.FulfillmentTopic
}

// Topics lists every distinct configured topic, sorted.
func (c PubSubConfig) Topics() []string {
	seen := map[string]bool{}
	add := func(topic string) {
		if topic = strings.TrimSpace(topic); topic != "" {
			seen[topic] = true
		}
	}
	add(c.FulfillmentTopic)
	for _, topic := range c.TopicOverrides {
		add(topic)
	}
	out := make([]string, 0, len(seen))
	for topic := range seen {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"STOCKFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"STOCKFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"STOCKFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int           `envconfig:"STOCKFLOW_OUTBOX_RETENTION_DAYS" default:"30"`
	PublishTimeout time.Duration `envconfig:"STOCKFLOW_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOCKFLOW_CRON_INTERVAL" default:"24h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
