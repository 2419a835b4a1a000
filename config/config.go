// Package config provides configuration loading for the idpkg pipeline.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"idpkg-go/etl"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete idpkg configuration
type Config struct {
	Sources  []SourceConfig `yaml:"sources"`
	Output   OutputConfig   `yaml:"output"`
	Workers  int            `yaml:"workers"`
	LogLevel string         `yaml:"log_level"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Expect   ExpectConfig   `yaml:"expect"`
}

// SourceConfig names one source database and where its crawl is stored
type SourceConfig struct {
	// Name is the label written into idpc:source (e.g. "DisProt")
	Name string `yaml:"name"`
	// Dir holds the crawled files
	Dir string `yaml:"dir"`
	// Ext filters the files of Dir (default: .nq)
	Ext string `yaml:"ext"`
}

// OutputConfig sets the output paths. The extension picks the format.
type OutputConfig struct {
	IDPKG            string `yaml:"idpkg"`
	IDPKGJSONLD      string `yaml:"idpkg_jsonld"`
	IDPCentral       string `yaml:"idpcentral"`
	IDPCentralJSONLD string `yaml:"idpcentral_jsonld"`
}

// MongoConfig configures the optional record sink
type MongoConfig struct {
	// URI enables the sink when set
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
	// Threads is the number of concurrent writers
	Threads int `yaml:"threads"`
}

// MetricsConfig configures the optional Prometheus textfile
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// ExpectConfig pins the counts of a known corpus. Zero values are not checked.
type ExpectConfig struct {
	Files            int `yaml:"files"`
	FlatStatements   int `yaml:"flat_statements"`
	MergedStatements int `yaml:"merged_statements"`
	Contexts         int `yaml:"contexts"`
}

// Expectations converts the configured counts for the pipeline check.
func (e ExpectConfig) Expectations() etl.Expectations {
	return etl.Expectations{
		Files:            e.Files,
		FlatStatements:   e.FlatStatements,
		MergedStatements: e.MergedStatements,
		Contexts:         e.Contexts,
	}
}

// DefaultConfig returns a Config with the fixed relative layout of the data
// directory.
func DefaultConfig() *Config {
	return &Config{
		Sources: []SourceConfig{
			{Name: "DisProt", Dir: "data/disprot", Ext: ".nq"},
			{Name: "MobiDB", Dir: "data/mobidb", Ext: ".nq"},
			{Name: "PED", Dir: "data/ped", Ext: ".nq"},
		},
		Output: OutputConfig{
			IDPKG:            "data/IDPKG/idpkg.nq",
			IDPKGJSONLD:      "data/IDPKG/idpkg.jsonld",
			IDPCentral:       "data/IDPcentral/idpcentral.ttl",
			IDPCentralJSONLD: "data/IDPcentral/idpcentral.jsonld",
		},
		Workers:  1,
		LogLevel: "info",
		Mongo: MongoConfig{
			Database: "metadb",
			Threads:  10,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return errors.Wrap(ErrInvalid, "at least one source is required")
	}
	seen := make(map[string]bool)
	for i, s := range c.Sources {
		if s.Name == "" {
			return errors.Wrapf(ErrInvalid, "sources[%d].name is required", i)
		}
		if seen[s.Name] {
			return errors.Wrapf(ErrInvalid, "source %q is listed twice", s.Name)
		}
		seen[s.Name] = true
		if s.Dir == "" {
			return errors.Wrapf(ErrInvalid, "sources[%d].dir is required", i)
		}
		if s.Ext != "" && !strings.HasPrefix(s.Ext, ".") {
			return errors.Wrapf(ErrInvalid, "sources[%d].ext must start with a dot", i)
		}
	}
	if c.Output.IDPKG == "" {
		return errors.Wrap(ErrInvalid, "output.idpkg is required")
	}
	if c.Output.IDPCentral == "" {
		return errors.Wrap(ErrInvalid, "output.idpcentral is required")
	}
	if c.Workers < 1 {
		return errors.Wrap(ErrInvalid, "workers must be at least 1")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalid, "log_level %q", c.LogLevel)
	}
	if c.Mongo.URI != "" && c.Mongo.Threads < 1 {
		return errors.Wrap(ErrInvalid, "mongo.threads must be at least 1")
	}
	e := c.Expect
	if e.Files < 0 || e.FlatStatements < 0 || e.MergedStatements < 0 || e.Contexts < 0 {
		return errors.Wrap(ErrInvalid, "expected counts cannot be negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	fileConfig, err := readFile(path)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	config.Merge(fileConfig)
	return config, nil
}

// readFile parses a YAML file into a config that holds only the keys the file sets.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrapf(err, "parse config file %s", path)
	}
	for i := range config.Sources {
		if config.Sources[i].Ext == "" {
			config.Sources[i].Ext = ".nq"
		}
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "write config file")
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if len(other.Sources) > 0 {
		c.Sources = other.Sources
	}

	if other.Output.IDPKG != "" {
		c.Output.IDPKG = other.Output.IDPKG
	}
	if other.Output.IDPKGJSONLD != "" {
		c.Output.IDPKGJSONLD = other.Output.IDPKGJSONLD
	}
	if other.Output.IDPCentral != "" {
		c.Output.IDPCentral = other.Output.IDPCentral
	}
	if other.Output.IDPCentralJSONLD != "" {
		c.Output.IDPCentralJSONLD = other.Output.IDPCentralJSONLD
	}

	if other.Workers != 0 {
		c.Workers = other.Workers
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}

	if other.Mongo.URI != "" {
		c.Mongo.URI = other.Mongo.URI
	}
	if other.Mongo.Database != "" {
		c.Mongo.Database = other.Mongo.Database
	}
	if other.Mongo.Threads != 0 {
		c.Mongo.Threads = other.Mongo.Threads
	}

	if other.Metrics.Textfile != "" {
		c.Metrics.Textfile = other.Metrics.Textfile
	}

	if other.Expect != (ExpectConfig{}) {
		c.Expect = other.Expect
	}
}
