// Package config provides configuration loading for the hybridgraph CLI and
// gateway. Per spec §6, the predicate IRIs, reserved variable name, DSL
// templates, and connective mapping are fixed at engine-start time and are
// read-only thereafter.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// PredicateConfig holds the configured IRIs used by the preprocessor and
// rewriter to recognize time-series shapes (spec §4.1, §6).
type PredicateConfig struct {
	HasTimeseries string `mapstructure:"hasTimeseries"`
	HasDataPoint  string `mapstructure:"hasDataPoint"`
	HasValue      string `mapstructure:"hasValue"`
	HasTimestamp  string `mapstructure:"hasTimestamp"`
	HasExternalID string `mapstructure:"hasExternalId"`
}

// DSLConfig holds the DSL translator's configuration (spec §4.5, §6):
// the name/type-name templates, the connective-to-IRI mapping, and the
// LIKE function IRI.
type DSLConfig struct {
	NamePredicate     string            `mapstructure:"namePredicate"`
	NameTemplate      string            `mapstructure:"nameTemplate"`
	TypeNameTemplate  string            `mapstructure:"typeNameTemplate"`
	ConnectiveMapping map[string]string `mapstructure:"connectiveMapping"`
	LikeFunctionIRI   string            `mapstructure:"likeFunctionIri"`
}

// PushdownConfig controls which classes of filter/aggregate pushdown the
// rewriter is permitted to perform, mirroring the driver-declared
// pushdown_settings of spec §6.
type PushdownConfig struct {
	GroupBy         bool `mapstructure:"groupBy"`
	ValueConditions bool `mapstructure:"valueConditions"`
}

// TimeSeriesConfig holds the reserved variable name and timestamp format
// from spec §6's configuration constants.
type TimeSeriesConfig struct {
	ReservedTimestampVariable string `mapstructure:"reservedTimestampVariable"`
	DateTimeFormat            string `mapstructure:"dateTimeFormat"`
	Concurrency               int    `mapstructure:"concurrency"`
	Pushdown                  PushdownConfig `mapstructure:"pushdown"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP gateway configuration.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  string `mapstructure:"readTimeout"`
	WriteTimeout string `mapstructure:"writeTimeout"`
}

// Config holds the full engine configuration.
type Config struct {
	SPARQLEndpoint string            `mapstructure:"sparqlEndpoint"`
	Predicates     PredicateConfig   `mapstructure:"predicates"`
	DSL            DSLConfig         `mapstructure:"dsl"`
	TimeSeries     TimeSeriesConfig  `mapstructure:"timeseries"`
	Logging        LoggingConfig     `mapstructure:"logging"`
	Server         ServerConfig      `mapstructure:"server"`
}

// DefaultConfig returns a configuration with default values, using the
// predicate IRIs and variable naming from the spec's worked examples.
func DefaultConfig() *Config {
	return &Config{
		SPARQLEndpoint: "http://localhost:8890/sparql",
		Predicates: PredicateConfig{
			HasTimeseries: "https://hybridgraph.dev/ont#hasTimeseries",
			HasDataPoint:  "https://hybridgraph.dev/ont#hasDataPoint",
			HasValue:      "https://hybridgraph.dev/ont#hasValue",
			HasTimestamp:  "https://hybridgraph.dev/ont#hasTimestamp",
			HasExternalID: "https://hybridgraph.dev/ont#hasExternalId",
		},
		DSL: DSLConfig{
			ConnectiveMapping: map[string]string{},
			LikeFunctionIRI:   "https://hybridgraph.dev/ont#like",
		},
		TimeSeries: TimeSeriesConfig{
			ReservedTimestampVariable: "t",
			DateTimeFormat:            "2006-01-02T15:04:05Z07:00",
			Concurrency:               8,
			Pushdown: PushdownConfig{
				GroupBy:         true,
				ValueConditions: true,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  "30s",
			WriteTimeout: "30s",
		},
	}
}

// Load loads configuration from file and environment, falling back to
// DefaultConfig's values for anything unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".hybridgraph"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("HYBRIDGRAPH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("sparqlEndpoint", d.SPARQLEndpoint)
	v.SetDefault("predicates.hasTimeseries", d.Predicates.HasTimeseries)
	v.SetDefault("predicates.hasDataPoint", d.Predicates.HasDataPoint)
	v.SetDefault("predicates.hasValue", d.Predicates.HasValue)
	v.SetDefault("predicates.hasTimestamp", d.Predicates.HasTimestamp)
	v.SetDefault("predicates.hasExternalId", d.Predicates.HasExternalID)
	v.SetDefault("dsl.likeFunctionIri", d.DSL.LikeFunctionIRI)
	v.SetDefault("timeseries.reservedTimestampVariable", d.TimeSeries.ReservedTimestampVariable)
	v.SetDefault("timeseries.dateTimeFormat", d.TimeSeries.DateTimeFormat)
	v.SetDefault("timeseries.concurrency", d.TimeSeries.Concurrency)
	v.SetDefault("timeseries.pushdown.groupBy", d.TimeSeries.Pushdown.GroupBy)
	v.SetDefault("timeseries.pushdown.valueConditions", d.TimeSeries.Pushdown.ValueConditions)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.readTimeout", d.Server.ReadTimeout)
	v.SetDefault("server.writeTimeout", d.Server.WriteTimeout)
}
