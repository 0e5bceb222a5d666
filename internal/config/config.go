package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/storm-lightning-bursts/internal/analysis"
)

// Input sources.
const (
	InputCSV   = "csv"
	InputKafka = "kafka"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	InputSource string
	InputPath   string

	KafkaBrokers        []string
	KafkaSourceTopic    string
	KafkaSinkTopic      string
	KafkaGroupID        string
	KafkaPublishEnabled bool
	// KafkaStartupTimeout bounds the wait for the first source message while
	// the consumer group joins.
	KafkaStartupTimeout time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	OutputDir          string
	PlanPath           string
	ServeAfterRun      bool
	SkipInvalidRecords bool

	// Plan is loaded from PlanPath, or analysis.DefaultPlan when unset.
	Plan analysis.Plan
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	startupTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("KAFKA_STARTUP_TIMEOUT", "30s"))
	if err != nil || startupTimeout <= 0 {
		return nil, errors.New("invalid KAFKA_STARTUP_TIMEOUT: must be a positive duration")
	}

	publish, err := parseBool("KAFKA_PUBLISH_ENABLED")
	if err != nil {
		return nil, err
	}
	serve, err := parseBool("SERVE_AFTER_RUN")
	if err != nil {
		return nil, err
	}
	skip, err := parseBool("SKIP_INVALID_RECORDS")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		InputSource:         sharedcfg.EnvOrDefault("INPUT_SOURCE", InputCSV),
		InputPath:           sharedcfg.EnvOrDefault("INPUT_PATH", "data/timebins.csv"),
		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:    sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "lightning-timebins"),
		KafkaSinkTopic:      sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "lightning-burst-reports"),
		KafkaGroupID:        sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "lightning-bursts"),
		KafkaPublishEnabled: publish,
		KafkaStartupTimeout: startupTimeout,
		HTTPAddr:            os.Getenv("HTTP_ADDR"),
		LogLevel:            sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:     shutdownTimeout,
		BatchSize:           batchSize,
		BatchFlushInterval:  flushInterval,
		OutputDir:           sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),
		PlanPath:            os.Getenv("PLAN_PATH"),
		ServeAfterRun:       serve,
		SkipInvalidRecords:  skip,
	}
	// An explicitly empty HTTP_ADDR disables the server.
	if _, set := os.LookupEnv("HTTP_ADDR"); !set {
		cfg.HTTPAddr = ":8080"
	}

	switch cfg.InputSource {
	case InputCSV:
		if cfg.InputPath == "" {
			return nil, errors.New("INPUT_PATH is required for csv input")
		}
	case InputKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
	default:
		return nil, fmt.Errorf("invalid INPUT_SOURCE %q: must be %s or %s", cfg.InputSource, InputCSV, InputKafka)
	}
	if cfg.KafkaPublishEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	if cfg.ServeAfterRun && cfg.HTTPAddr == "" {
		return nil, errors.New("SERVE_AFTER_RUN requires HTTP_ADDR")
	}

	if cfg.PlanPath == "" {
		cfg.Plan = analysis.DefaultPlan()
	} else if cfg.Plan, err = LoadPlan(cfg.PlanPath); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseBool(key string) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be true or false", key)
	}
	return v, nil
}
