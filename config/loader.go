package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"idpkg-go/logger"
)

const (
	// ProjectConfigFile is read from the working directory when no path is given
	ProjectConfigFile = "idpkg.yaml"
	// EnvPrefix starts every environment override
	EnvPrefix = "IDPKG_"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	lookupEnv func(string) (string, bool)
	envFiles  []string
}

// NewLoader creates a loader that reads the process environment, after
// loading a .env file from the working directory if there is one.
func NewLoader() *Loader {
	return &Loader{lookupEnv: os.LookupEnv}
}

// WithEnvFiles replaces the .env files read before the environment is
// consulted.
func (l *Loader) WithEnvFiles(files ...string) *Loader {
	l.envFiles = files
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. Config file (path, or idpkg.yaml in the working directory)
// 3. Environment variables (IDPKG_*), including those set in .env
func (l *Loader) Load(path string) (*Config, error) {
	if err := godotenv.Load(l.envFiles...); err != nil {
		logger.Debug("No .env found, using local environment")
	}

	config := DefaultConfig()
	if path == "" {
		if _, err := os.Stat(ProjectConfigFile); err == nil {
			path = ProjectConfigFile
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
		logger.Debug("Loaded config file", zap.String("path", path))
	} else {
		logger.Debug("No config file, using defaults")
	}

	if err := l.applyEnv(config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overrides config with IDPKG_* variables. A source directory is
// overridden with IDPKG_<NAME>_DIR, e.g. IDPKG_DISPROT_DIR.
func (l *Loader) applyEnv(c *Config) error {
	str := func(name string, target *string) {
		if v, ok := l.lookupEnv(EnvPrefix + name); ok && v != "" {
			*target = v
			logger.Debug("Config from environment", zap.String("variable", EnvPrefix+name))
		}
	}
	num := func(name string, target *int) error {
		v, ok := l.lookupEnv(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(ErrInvalid, "%s%s=%q is not a number", EnvPrefix, name, v)
		}
		*target = n
		return nil
	}

	for i := range c.Sources {
		str(strings.ToUpper(c.Sources[i].Name)+"_DIR", &c.Sources[i].Dir)
	}
	str("OUTPUT_IDPKG", &c.Output.IDPKG)
	str("OUTPUT_IDPKG_JSONLD", &c.Output.IDPKGJSONLD)
	str("OUTPUT_IDPCENTRAL", &c.Output.IDPCentral)
	str("OUTPUT_IDPCENTRAL_JSONLD", &c.Output.IDPCentralJSONLD)
	str("LOG_LEVEL", &c.LogLevel)
	str("MONGO_URI", &c.Mongo.URI)
	str("MONGO_DATABASE", &c.Mongo.Database)
	str("METRICS_TEXTFILE", &c.Metrics.Textfile)
	if err := num("WORKERS", &c.Workers); err != nil {
		return err
	}
	return num("MONGO_THREADS", &c.Mongo.Threads)
}
