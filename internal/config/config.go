// Package config loads service settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/drfirst/rxinsight/internal/analytics"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StoreDriver     string `mapstructure:"STORE_DRIVER"`
	MongoURI        string `mapstructure:"MONGODB_URI"`
	MongoDatabase   string `mapstructure:"MONGODB_DATABASE"`
	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32  `mapstructure:"DB_MAX_CONNS"`
	KafkaBrokersRaw string `mapstructure:"KAFKA_BROKERS"`
	IngestTopic     string `mapstructure:"INGEST_TOPIC"`
	IngestGroup     string `mapstructure:"INGEST_GROUP"`
	DeadLetterTopic string `mapstructure:"DEAD_LETTER_TOPIC"`
	Workers         int    `mapstructure:"WORKERS"`

	SnapshotTopic    string        `mapstructure:"SNAPSHOT_TOPIC"`
	SnapshotInterval time.Duration `mapstructure:"SNAPSHOT_INTERVAL"`

	APIKeysRaw      string  `mapstructure:"API_KEYS"`
	OTLPEndpoint    string  `mapstructure:"OTLP_ENDPOINT"`
	TraceSampleRate float64 `mapstructure:"TRACE_SAMPLE_RATE"`

	InterestingLabsRaw string `mapstructure:"INTERESTING_LABS"`
	FeverTermsRaw      string `mapstructure:"FEVER_TERMS"`
	TrendMonths        int    `mapstructure:"TREND_MONTHS"`
	SummaryDays        int    `mapstructure:"SUMMARY_DAYS"`
	DefaultClinic      string `mapstructure:"DEFAULT_CLINIC"`
}

var defaults = map[string]interface{}{
	"PORT":              "8080",
	"ENV":               "development",
	"LOG_LEVEL":         "info",
	"STORE_DRIVER":      DriverMongo,
	"MONGODB_URI":       "mongodb://localhost:27017",
	"MONGODB_DATABASE":  "prescription_analyzer",
	"DB_MAX_CONNS":      10,
	"KAFKA_BROKERS":     "localhost:9092",
	"INGEST_TOPIC":      "prescriptions.extracted",
	"INGEST_GROUP":      "rxinsight-ingestor",
	"DEAD_LETTER_TOPIC": "prescriptions.deadletter",
	"WORKERS":           8,
	"SNAPSHOT_TOPIC":    "analytics.snapshots",
	"SNAPSHOT_INTERVAL": "5m",
	"OTLP_ENDPOINT":     "localhost:4317",
	"TRACE_SAMPLE_RATE": 0.1,
	"INTERESTING_LABS":  "HbA1c,Hemoglobin,Cholesterol",
	"FEVER_TERMS":       "fever,temperature,pyrexia",
	"TREND_MONTHS":      12,
	"SUMMARY_DAYS":      30,
	"DEFAULT_CLINIC":    "General Clinic",
}

var envOnly = []string{"DATABASE_URL", "API_KEYS"}

// Load reads settings from the environment, falling back to a .env file in
// the working directory and then to defaults.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key)
	}
	for _, key := range envOnly {
		_ = v.BindEnv(key)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, nil
}

// Validate checks that the selected store can be reached and the numeric
// settings are usable.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required when STORE_DRIVER is %q", DriverMongo)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", DriverPostgres)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMongo, DriverPostgres, c.StoreDriver)
	}

	if c.TrendMonths < 1 || c.SummaryDays < 1 {
		return fmt.Errorf("TREND_MONTHS and SUMMARY_DAYS must be positive")
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATE must be between 0 and 1, got %v", c.TraceSampleRate)
	}
	if _, err := c.APIKeys(); err != nil {
		return err
	}
	return nil
}

// IsDev reports whether the service runs in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// KafkaBrokers returns the broker list.
func (c *Config) KafkaBrokers() []string {
	return splitList(c.KafkaBrokersRaw)
}

// APIKeys parses API_KEYS ("key:client,key:client") into a key to client map.
func (c *Config) APIKeys() (map[string]string, error) {
	keys := make(map[string]string)
	for _, pair := range splitList(c.APIKeysRaw) {
		key, client, ok := strings.Cut(pair, ":")
		key, client = strings.TrimSpace(key), strings.TrimSpace(client)
		if !ok || key == "" || client == "" {
			return nil, fmt.Errorf("API_KEYS entry %q must be key:client", pair)
		}
		keys[key] = client
	}
	return keys, nil
}

// Analytics returns the aggregation settings.
func (c *Config) Analytics() analytics.Config {
	cfg := analytics.DefaultConfig()
	if labs := splitList(c.InterestingLabsRaw); len(labs) > 0 {
		cfg.InterestingLabs = labs
	}
	if terms := splitList(c.FeverTermsRaw); len(terms) > 0 {
		cfg.FeverTerms = terms
	}
	if c.TrendMonths > 0 {
		cfg.TrendMonths = c.TrendMonths
	}
	if c.SummaryDays > 0 {
		cfg.SummaryDays = c.SummaryDays
	}
	if c.DefaultClinic != "" {
		cfg.DefaultClinic = c.DefaultClinic
	}
	return cfg
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
