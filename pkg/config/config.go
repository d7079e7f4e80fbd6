package config

import (
	"time"

	"github.com/kscrap/kscrap/pkg/compression"
	"github.com/kscrap/kscrap/pkg/item"
	"github.com/kscrap/kscrap/pkg/logger"
)

// Extension is an output file extension.
type Extension string

// ExtensionCSV is the only supported extension.
const ExtensionCSV Extension = "csv"

const (
	// DefaultAutoSaveInterval is used when no valid interval is configured.
	DefaultAutoSaveInterval = 30 * time.Second
	// MinAutoSaveInterval is the shortest accepted autosave interval.
	MinAutoSaveInterval = 3 * time.Second
	// DefaultSeparator is used when the configured separator is invalid.
	DefaultSeparator = ","
	// DefaultBaseNamePrefix prefixes generated base names.
	DefaultBaseNamePrefix = "KScrap_"
	// BaseNameTimeLayout formats the timestamp of generated base names.
	BaseNameTimeLayout = "02_01_2006_150405"
)

// Config is the top-level configuration file.
type Config struct {
	Repository  RepositoryConfig  `yaml:"repository" json:"repository"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Transmitter TransmitterConfig `yaml:"transmitter" json:"transmitter"`
	Types       []TypeConfig      `yaml:"types,omitempty" json:"types,omitempty"`
}

// RepositoryConfig controls where and how a repository persists its rows.
type RepositoryConfig struct {
	// Directory must exist; otherwise the platform default is used.
	Directory string `yaml:"directory" json:"directory"`
	// BaseName is the file name without extension.
	BaseName  string    `yaml:"base_name" json:"base_name"`
	Extension Extension `yaml:"extension" json:"extension"`
	// Separator is a single character other than a quote or line break.
	Separator               string `yaml:"separator" json:"separator"`
	WriteHeaderIfFileAbsent bool   `yaml:"write_header_if_file_absent" json:"write_header_if_file_absent"`
	// StrictWidening disables saving after a widening attempt fails.
	StrictWidening bool           `yaml:"strict_widening" json:"strict_widening"`
	Compression    string         `yaml:"compression" json:"compression"`
	AutoSave       AutoSaveConfig `yaml:"auto_save" json:"auto_save"`
}

// AutoSaveConfig controls periodic saving.
type AutoSaveConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// LoggingConfig mirrors logger.Config for configuration files.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Development bool   `yaml:"development" json:"development"`
	Encoding    string `yaml:"encoding" json:"encoding"`
}

// TransmitterConfig selects where appended items are forwarded.
type TransmitterConfig struct {
	// Kind is none or kafka.
	Kind  string      `yaml:"kind" json:"kind"`
	Kafka KafkaConfig `yaml:"kafka" json:"kafka"`
}

// KafkaConfig configures the Kafka transmitter.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers" json:"brokers"`
	Topic    string   `yaml:"topic" json:"topic"`
	ClientID string   `yaml:"client_id" json:"client_id"`
	// RequiredAcks is none, leader or all.
	RequiredAcks string        `yaml:"required_acks" json:"required_acks"`
	Compression  string        `yaml:"compression" json:"compression"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// TypeConfig declares an item type for input that carries no Go type.
type TypeConfig struct {
	Name   string           `yaml:"name" json:"name"`
	Fields []item.FieldSpec `yaml:"fields" json:"fields"`
}

// Schema builds the item schema the type declares.
func (t TypeConfig) Schema() (*item.Schema, error) {
	return item.Define(t.Name, t.Fields...)
}

// NewConfig returns a configuration with every default applied.
func NewConfig() *Config {
	return &Config{
		Repository: *NewRepositoryConfig(),
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Transmitter: TransmitterConfig{
			Kind: "none",
			Kafka: KafkaConfig{
				ClientID:     "kscrap",
				RequiredAcks: "all",
				Compression:  "none",
				Timeout:      10 * time.Second,
			},
		},
	}
}

// NewRepositoryConfig returns the default repository configuration.
func NewRepositoryConfig() *RepositoryConfig {
	return &RepositoryConfig{
		Directory:               DefaultDirectory(),
		BaseName:                DefaultBaseName(time.Now()),
		Extension:               ExtensionCSV,
		Separator:               DefaultSeparator,
		WriteHeaderIfFileAbsent: true,
		Compression:             string(compression.None),
		AutoSave: AutoSaveConfig{
			Interval: DefaultAutoSaveInterval,
		},
	}
}

// Logger converts the logging section into a logger configuration.
func (l LoggingConfig) Logger() logger.Config {
	return logger.Config{
		Level:       l.Level,
		Development: l.Development,
		Encoding:    l.Encoding,
	}
}

// Clone returns a copy of c.
func (c *RepositoryConfig) Clone() *RepositoryConfig {
	clone := *c
	return &clone
}
