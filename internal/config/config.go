package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/dx-spot-relay/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"
)

// Config holds all service settings, populated from environment variables
// and the targets file.
type Config struct {
	ClusterHost     string
	ClusterPort     int
	ClusterCall     string
	ClusterCommands []string

	FeedDialTimeout  time.Duration
	FeedLoginTimeout time.Duration
	FeedIdleTimeout  time.Duration

	BackoffMin   time.Duration
	BackoffMax   time.Duration
	BackoffReset time.Duration

	DedupWindow   time.Duration
	TargetsFile   string
	Targets       []domain.TargetCriterion
	NotifyTimeout time.Duration

	// Telegram notifier configuration.
	TelegramToken         string
	TelegramChatIDs       []string
	TelegramEnabled       bool
	TelegramRatePerMinute int

	// Kafka alert sink configuration.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaAlertTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// ClusterAddr returns the host:port of the cluster node.
func (c *Config) ClusterAddr() string {
	return net.JoinHostPort(c.ClusterHost, strconv.Itoa(c.ClusterPort))
}

// Load reads configuration from environment variables, applying defaults where
// unset, then loads the targets file.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ClusterHost:     os.Getenv("DXCLUSTER_HOST"),
		ClusterCall:     sharedcfg.EnvOrDefault("DXCLUSTER_CALL", "NOCALL"),
		ClusterCommands: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("DXCLUSTER_COMMANDS", "set/skimmer,set/ft8,set/announce on,set/ve7cc 1")),
		TargetsFile:     sharedcfg.EnvOrDefault("TARGETS_FILE", "targets.yaml"),
		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatIDs: sharedcfg.ParseBrokers(os.Getenv("TELEGRAM_CHAT_IDS")),
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "dx-spot-alerts"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.ClusterPort, err = parsePositiveInt("DXCLUSTER_PORT", 7373); err != nil {
		return nil, err
	}
	if cfg.TelegramRatePerMinute, err = parsePositiveInt("TELEGRAM_RATE_PER_MINUTE", 20); err != nil {
		return nil, err
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"FEED_DIAL_TIMEOUT", "10s", &cfg.FeedDialTimeout},
		{"FEED_LOGIN_TIMEOUT", "15s", &cfg.FeedLoginTimeout},
		{"FEED_IDLE_TIMEOUT", "5m", &cfg.FeedIdleTimeout},
		{"BACKOFF_MIN", "1s", &cfg.BackoffMin},
		{"BACKOFF_MAX", "60s", &cfg.BackoffMax},
		{"BACKOFF_RESET", "5m", &cfg.BackoffReset},
		{"DEDUP_WINDOW", "30m", &cfg.DedupWindow},
		{"NOTIFY_TIMEOUT", "10s", &cfg.NotifyTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	cfg.TelegramEnabled = cfg.TelegramToken != ""
	if v := os.Getenv("TELEGRAM_ENABLED"); v != "" {
		cfg.TelegramEnabled = v == "true"
	}
	cfg.KafkaEnabled = os.Getenv("KAFKA_ENABLED") == "true"

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	targets, err := LoadTargets(cfg.TargetsFile)
	if err != nil {
		return nil, err
	}
	cfg.Targets = targets

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ClusterHost == "" {
		return errors.New("DXCLUSTER_HOST is required")
	}
	if c.ClusterPort > 65535 {
		return errors.New("invalid DXCLUSTER_PORT: must be 1-65535")
	}
	if c.BackoffMax < c.BackoffMin {
		return errors.New("invalid BACKOFF_MAX: must not be below BACKOFF_MIN")
	}
	if c.TelegramEnabled && c.TelegramToken == "" {
		return errors.New("TELEGRAM_ENABLED is true but TELEGRAM_TOKEN is not set")
	}
	if c.TelegramEnabled && len(c.TelegramChatIDs) == 0 {
		return errors.New("TELEGRAM_ENABLED is true but TELEGRAM_CHAT_IDS is empty")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if c.KafkaEnabled && c.KafkaAlertTopic == "" {
		return errors.New("KAFKA_ALERT_TOPIC is required when KAFKA_ENABLED is true")
	}
	return nil
}

// targetsFile is the YAML layout of TARGETS_FILE:
//
//	targets:
//	  - callsign: "VP8*"
//	  - bands: [20m, 17m]
//	    modes: [CW]
type targetsFile struct {
	Targets []domain.TargetCriterion `yaml:"targets"`
}

// LoadTargets reads and validates the target criteria in path. An empty list
// is allowed; the relay then alerts on nothing.
func LoadTargets(path string) ([]domain.TargetCriterion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read TARGETS_FILE: %w", err)
	}

	var f targetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse TARGETS_FILE %s: %w", path, err)
	}
	for i, c := range f.Targets {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("TARGETS_FILE %s: target %d: %w", path, i+1, err)
		}
	}
	return f.Targets, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
