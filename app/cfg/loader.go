package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Field store
	DBDriver   string `long:"db-driver" env:"DB_DRIVER" default:"postgres" choice:"postgres" choice:"sqlite" choice:"memory" description:"Field store backend"`
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"feed_relay" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" description:"Database password (required for postgres)"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"feed_relay" description:"Database name"`
	DBSSLMode  string `long:"db-sslmode" env:"DB_SSLMODE" default:"disable" description:"Postgres sslmode"`
	SQLitePath string `long:"sqlite-path" env:"SQLITE_PATH" default:"./feed-relay.db" description:"SQLite database file"`

	// Articles cache
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address (empty uses an in-process cache)"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	CacheTTL      int    `long:"cache-ttl" env:"CACHE_TTL" default:"300" description:"Parsed articles cache TTL in seconds"`

	// Feed fetching and parsing
	FetchHost     string `long:"fetch-host" env:"FEED_REQUESTS_API_HOST" description:"Feed fetch service base URL (required)" required:"true"`
	FetchRetries  int    `long:"fetch-retries" env:"FETCH_RETRIES" default:"2" description:"Retries for failed fetch service calls"`
	FetchTimeout  int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Fetch service request timeout in seconds"`
	ParseTimeout  int    `long:"parse-timeout" env:"PARSE_TIMEOUT" default:"10" description:"Feed parse timeout in seconds"`
	ParserWorkers int    `long:"parser-workers" env:"PARSER_WORKERS" default:"4" description:"Parser pool workers (0 parses inline)"`

	// Messaging
	NatsURL            string `long:"nats-url" env:"NATS_URL" description:"NATS server URL (empty disables messaging)"`
	NatsDeliverSubject string `long:"nats-deliver-subject" env:"NATS_DELIVER_SUBJECT" default:"feed.deliver-articles" description:"Subject of feed refresh events"`
	NatsDeletedSubject string `long:"nats-deleted-subject" env:"NATS_DELETED_SUBJECT" default:"feed.deleted" description:"Subject of feed deletion events"`
	NatsPublishSubject string `long:"nats-publish-subject" env:"NATS_PUBLISH_SUBJECT" default:"feed.article-deliveries" description:"Subject article deliveries are published to"`
	NatsQueueGroup     string `long:"nats-queue-group" env:"NATS_QUEUE_GROUP" default:"feed-relay" description:"NATS queue group"`

	// Application configuration
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://relay.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	OutboxSize        int    `long:"outbox-size" env:"OUTBOX_SIZE" default:"50" description:"Deliveries kept per feed for the RSS outbox"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Feed Relay/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	LogLevel  string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"Log level (debug, info, warn, error)"`
	LogJSON   bool   `long:"log-json" env:"LOG_JSON" description:"Emit logs as JSON"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBDriver:           raw.DBDriver,
		DBHost:             raw.DBHost,
		DBPort:             raw.DBPort,
		DBUser:             raw.DBUser,
		DBPassword:         raw.DBPassword,
		DBName:             raw.DBName,
		DBSSLMode:          raw.DBSSLMode,
		SQLitePath:         raw.SQLitePath,
		RedisAddr:          raw.RedisAddr,
		RedisPassword:      raw.RedisPassword,
		RedisDB:            raw.RedisDB,
		CacheTTL:           raw.CacheTTL,
		FetchHost:          strings.TrimSuffix(raw.FetchHost, "/"),
		FetchRetries:       raw.FetchRetries,
		FetchTimeout:       time.Duration(raw.FetchTimeout) * time.Second,
		ParseTimeout:       time.Duration(raw.ParseTimeout) * time.Second,
		ParserWorkers:      raw.ParserWorkers,
		NatsURL:            raw.NatsURL,
		NatsDeliverSubject: raw.NatsDeliverSubject,
		NatsDeletedSubject: raw.NatsDeletedSubject,
		NatsPublishSubject: raw.NatsPublishSubject,
		NatsQueueGroup:     raw.NatsQueueGroup,
		FeedsDir:           raw.FeedsDir,
		Port:               raw.Port,
		BaseUrl:            raw.BaseUrl,
		WorkerCount:        raw.WorkerCount,
		SchedulerInterval:  raw.SchedulerInterval,
		APIAccessKey:       raw.APIAccessKey,
		OutboxSize:         raw.OutboxSize,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		LogLevel:           raw.LogLevel,
		LogJSON:            raw.LogJSON,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func (c *Cfg) validate() error {
	if c.DBDriver == DriverPostgres && c.DBPassword == "" {
		return fmt.Errorf("database password is required for the postgres driver")
	}
	if c.DBDriver == DriverSQLite && c.SQLitePath == "" {
		return fmt.Errorf("sqlite path is required for the sqlite driver")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.WorkerCount)
	}
	if c.SchedulerInterval < 1 {
		return fmt.Errorf("scheduler interval must be at least 1 second, got %d", c.SchedulerInterval)
	}
	if c.ParserWorkers < 0 {
		return fmt.Errorf("parser workers cannot be negative, got %d", c.ParserWorkers)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level. Debug forces debug; unknown values log at info.
func (c *Cfg) SlogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
