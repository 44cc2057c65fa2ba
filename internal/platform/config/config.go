package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is centralized process configuration. Values come from the
// environment first; an optional config.yaml supplies local-dev defaults.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	VoteTokenSecret   string
	TieBreakPolicy    string
	ParticipationGoal float64
	ResultsCacheTTL   time.Duration
	OutboxBatchSize   int

	EnableOutboxRelay        bool
	EnableResultsInvalidator bool
}

const configFilePath = "./config.yaml"

func Load() (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("service.name", "ballotbox")
	v.SetDefault("http.port", "8080")
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("tie.break.policy", "alphabetical")
	v.SetDefault("participation.goal", 80.0)
	v.SetDefault("results.cache.ttl", "30s")
	v.SetDefault("outbox.batch.size", 100)
	v.SetDefault("enable.outbox.relay", true)
	v.SetDefault("enable.results.invalidator", true)

	// config.yaml is optional; environments without one run on env vars
	// and defaults alone.
	v.SetConfigFile(configFilePath)
	if err := v.ReadInConfig(); err != nil {
		if !isMissingConfigFile(err) {
			return Config{}, errors.Wrapf(err, "failed to read config file %s", configFilePath)
		}
	}

	var brokers []string
	for _, value := range strings.Split(v.GetString("kafka.brokers"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}

	cacheTTL, err := time.ParseDuration(v.GetString("results.cache.ttl"))
	if err != nil {
		return Config{}, errors.Wrap(err, "invalid results cache ttl")
	}

	return Config{
		ServiceName:  v.GetString("service.name"),
		HTTPPort:     v.GetString("http.port"),
		PostgresDSN:  v.GetString("postgres.dsn"),
		KafkaBrokers: brokers,

		VoteTokenSecret:   v.GetString("vote.token.secret"),
		TieBreakPolicy:    v.GetString("tie.break.policy"),
		ParticipationGoal: v.GetFloat64("participation.goal"),
		ResultsCacheTTL:   cacheTTL,
		OutboxBatchSize:   v.GetInt("outbox.batch.size"),

		EnableOutboxRelay:        v.GetBool("enable.outbox.relay"),
		EnableResultsInvalidator: v.GetBool("enable.results.invalidator"),
	}, nil
}

func isMissingConfigFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	return strings.Contains(err.Error(), "no such file or directory")
}
