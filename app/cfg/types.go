package cfg

import "time"

type Cfg struct {
	// Field store
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Articles cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      int

	// Feed fetching and parsing
	FetchHost     string
	FetchRetries  int
	FetchTimeout  time.Duration
	ParseTimeout  time.Duration
	ParserWorkers int

	// Messaging
	NatsURL            string
	NatsDeliverSubject string
	NatsDeletedSubject string
	NatsPublishSubject string
	NatsQueueGroup     string

	// Application configuration
	FeedsDir          string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string
	OutboxSize        int

	// Application metadata
	UserAgent string
	Timezone  string
	LogLevel  string
	LogJSON   bool
	Debug     bool
	Version   string
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)
