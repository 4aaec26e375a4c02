package types

// ProjectConfig is the top-level enginehealth.yaml configuration.
type ProjectConfig struct {
	Store       StoreConfig      `yaml:"store" json:"store"`
	Cache       CacheConfig      `yaml:"cache,omitempty" json:"cache,omitempty"`
	Classifier  ClassifierConfig `yaml:"classifier,omitempty" json:"classifier,omitempty"`
	Stats       StatsConfig      `yaml:"stats,omitempty" json:"stats,omitempty"`
	Alerts      []AlertConfig    `yaml:"alerts,omitempty" json:"alerts,omitempty"`
	Telemetry   TelemetryConfig  `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`
	Concurrency int              `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
}

// StoreConfig selects and configures the profile store backend.
type StoreConfig struct {
	Type     StoreType       `yaml:"type" json:"type"`
	Dirs     []string        `yaml:"dirs,omitempty" json:"dirs,omitempty"`
	Redis    *RedisConfig    `yaml:"redis,omitempty" json:"redis,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty" json:"postgres,omitempty"`
	DynamoDB *DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
	Breaker  BreakerConfig   `yaml:"breaker,omitempty" json:"breaker,omitempty"`
}

// RedisConfig holds Redis/Valkey connection and key settings.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password,omitempty" json:"password,omitempty"`
	DB        int    `yaml:"db,omitempty" json:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
}

// PostgresConfig holds the Postgres connection string.
type PostgresConfig struct {
	DSN     string `yaml:"dsn" json:"dsn"`
	Migrate bool   `yaml:"migrate,omitempty" json:"migrate,omitempty"`
}

// DynamoDBConfig holds DynamoDB table settings.
type DynamoDBConfig struct {
	TableName   string `yaml:"tableName" json:"tableName"`
	Region      string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	CreateTable bool   `yaml:"createTable,omitempty" json:"createTable,omitempty"`
}

// BreakerConfig tunes the circuit breaker wrapping remote profile stores.
type BreakerConfig struct {
	FailThreshold int    `yaml:"failThreshold,omitempty" json:"failThreshold,omitempty"`
	Cooldown      string `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
}

// CacheConfig configures the resolved-profile cache.
type CacheConfig struct {
	TTL string `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// ClassifierConfig tunes the engine-state classifier. Zero values take the defaults.
type ClassifierConfig struct {
	RPMChannel        string  `yaml:"rpmChannel,omitempty" json:"rpmChannel,omitempty"`
	VswChannel        string  `yaml:"vswChannel,omitempty" json:"vswChannel,omitempty"`
	OnVoltage         float64 `yaml:"onVoltage,omitempty" json:"onVoltage,omitempty"`
	RunningRPM        float64 `yaml:"runningRpm,omitempty" json:"runningRpm,omitempty"`
	StableRPM         float64 `yaml:"stableRpm,omitempty" json:"stableRpm,omitempty"`
	DebounceSamples   int     `yaml:"debounceSamples,omitempty" json:"debounceSamples,omitempty"`
	StableHoldoffSec  float64 `yaml:"stableHoldoffSec,omitempty" json:"stableHoldoffSec,omitempty"`
	StopHoldoffSec    float64 `yaml:"stopHoldoffSec,omitempty" json:"stopHoldoffSec,omitempty"`
	KeyOffDebounceSec float64 `yaml:"keyOffDebounceSec,omitempty" json:"keyOffDebounceSec,omitempty"`
	StartupGraceSec   float64 `yaml:"startupGraceSec,omitempty" json:"startupGraceSec,omitempty"`
}

// StatsConfig tunes the statistics aggregator.
type StatsConfig struct {
	StalenessSec float64  `yaml:"stalenessSec,omitempty" json:"stalenessSec,omitempty"`
	Categorical  []string `yaml:"categorical,omitempty" json:"categorical,omitempty"`
}

// AlertConfig configures one alert sink.
type AlertConfig struct {
	Type     AlertType `yaml:"type" json:"type"`
	URL      string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path     string    `yaml:"path,omitempty" json:"path,omitempty"`
	BusName  string    `yaml:"busName,omitempty" json:"busName,omitempty"`
	QueueURL string    `yaml:"queueUrl,omitempty" json:"queueUrl,omitempty"`
	Region   string    `yaml:"region,omitempty" json:"region,omitempty"`
}

// TelemetryConfig configures OpenTelemetry export. An empty endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	ServiceName  string `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}
