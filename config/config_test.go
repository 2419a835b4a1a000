package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Len(t, cfg.Sources, 3)
	assert.Equal(t, SourceConfig{Name: "DisProt", Dir: "data/disprot", Ext: ".nq"}, cfg.Sources[0])
	assert.Equal(t, "data/IDPKG/idpkg.nq", cfg.Output.IDPKG)
	assert.Equal(t, "data/IDPcentral/idpcentral.ttl", cfg.Output.IDPCentral)
	assert.Equal(t, 1, cfg.Workers)
	assert.Empty(t, cfg.Mongo.URI, "the record sink is off by default")
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "no sources", modify: func(c *Config) { c.Sources = nil }, wantErr: true},
		{name: "unnamed source", modify: func(c *Config) { c.Sources[0].Name = "" }, wantErr: true},
		{name: "duplicate source", modify: func(c *Config) { c.Sources[1].Name = "DisProt" }, wantErr: true},
		{name: "source without dir", modify: func(c *Config) { c.Sources[2].Dir = "" }, wantErr: true},
		{name: "extension without dot", modify: func(c *Config) { c.Sources[0].Ext = "nq" }, wantErr: true},
		{name: "missing idpkg output", modify: func(c *Config) { c.Output.IDPKG = "" }, wantErr: true},
		{name: "missing idpcentral output", modify: func(c *Config) { c.Output.IDPCentral = "" }, wantErr: true},
		{name: "optional json-ld outputs", modify: func(c *Config) { c.Output.IDPKGJSONLD = ""; c.Output.IDPCentralJSONLD = "" }},
		{name: "zero workers", modify: func(c *Config) { c.Workers = 0 }, wantErr: true},
		{name: "unknown log level", modify: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
		{name: "mongo without threads", modify: func(c *Config) { c.Mongo.URI = "mongodb://localhost:27017"; c.Mongo.Threads = 0 }, wantErr: true},
		{name: "negative expectation", modify: func(c *Config) { c.Expect.Contexts = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "idpkg.yaml")
	content := `
sources:
  - name: DisProt
    dir: crawl/disprot
  - name: PED
    dir: crawl/ped
    ext: .nquads
workers: 4
mongo:
  uri: mongodb://localhost:27027
expect:
  files: 8
  flat_statements: 108
  merged_statements: 228
  contexts: 8
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, []SourceConfig{
		{Name: "DisProt", Dir: "crawl/disprot", Ext: ".nq"},
		{Name: "PED", Dir: "crawl/ped", Ext: ".nquads"},
	}, cfg.Sources)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "mongodb://localhost:27027", cfg.Mongo.URI)
	assert.Equal(t, "metadb", cfg.Mongo.Database, "unset keys keep their defaults")
	assert.Equal(t, "data/IDPKG/idpkg.nq", cfg.Output.IDPKG)

	expect := cfg.Expect.Expectations()
	assert.Equal(t, 108, expect.FlatStatements)
	assert.Equal(t, 228, expect.MergedStatements)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [1, 2"), 0644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	base.Merge(&Config{
		Workers: 8,
		Mongo:   MongoConfig{URI: "mongodb://db:27017"},
		Expect:  ExpectConfig{Contexts: 8},
	})

	assert.Equal(t, 8, base.Workers)
	assert.Equal(t, "mongodb://db:27017", base.Mongo.URI)
	assert.Equal(t, "metadb", base.Mongo.Database)
	assert.Equal(t, 8, base.Expect.Contexts)
	assert.Len(t, base.Sources, 3)
	assert.Equal(t, "info", base.LogLevel)

	base.Merge(nil)
	assert.Equal(t, 8, base.Workers)
}

func TestConfigSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "idpkg.yaml")
	cfg := DefaultConfig()
	cfg.Workers = 3

	require.NoError(t, cfg.SaveToFile(path))
	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoaderEnvironment(t *testing.T) {
	env := map[string]string{
		"IDPKG_DISPROT_DIR":              "/crawl/disprot",
		"IDPKG_WORKERS":                  "6",
		"IDPKG_MONGO_URI":                "mongodb://env:27017",
		"IDPKG_METRICS_TEXTFILE":         "/var/lib/node_exporter/idpkg.prom",
		"IDPKG_OUTPUT_IDPKG_JSONLD":      "/out/idpkg.jsonld",
		"IDPKG_OUTPUT_IDPCENTRAL_JSONLD": "/out/idpcentral.jsonld",
	}
	l := NewLoader().WithEnvFiles(filepath.Join(t.TempDir(), "absent.env"))
	l.lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg, err := l.Load(filepath.Join("..", "idpkg.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/crawl/disprot", cfg.Sources[0].Dir)
	assert.Equal(t, "data/mobidb", cfg.Sources[1].Dir)
	assert.Equal(t, 6, cfg.Workers)
	assert.Equal(t, "mongodb://env:27017", cfg.Mongo.URI)
	assert.Equal(t, "/var/lib/node_exporter/idpkg.prom", cfg.Metrics.Textfile)
	assert.Equal(t, "/out/idpkg.jsonld", cfg.Output.IDPKGJSONLD)
	assert.Equal(t, "/out/idpcentral.jsonld", cfg.Output.IDPCentralJSONLD)
	assert.Equal(t, "data/IDPKG/idpkg.nq", cfg.Output.IDPKG)
}

func TestLoaderLayersFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idpkg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 3\nmongo:\n  threads: 2\n"), 0644))
	l := NewLoader().WithEnvFiles(filepath.Join(t.TempDir(), "absent.env"))
	l.lookupEnv = func(string) (string, bool) { return "", false }

	cfg, err := l.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 2, cfg.Mongo.Threads)
	assert.Equal(t, "metadb", cfg.Mongo.Database)
	assert.Equal(t, DefaultConfig().Sources, cfg.Sources)
}

func TestLoaderRejectsBadNumber(t *testing.T) {
	l := NewLoader().WithEnvFiles(filepath.Join(t.TempDir(), "absent.env"))
	l.lookupEnv = func(k string) (string, bool) {
		if k == "IDPKG_WORKERS" {
			return "many", true
		}
		return "", false
	}
	_, err := l.Load("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoaderDotEnv(t *testing.T) {
	const variable = "IDPKG_MONGO_DATABASE"
	if _, ok := os.LookupEnv(variable); ok {
		t.Skipf("%s is set in the environment", variable)
	}
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(variable+"=idpcentral\n"), 0644))
	t.Cleanup(func() { os.Unsetenv(variable) })

	cfg, err := NewLoader().WithEnvFiles(envFile).Load("")
	require.NoError(t, err)
	assert.Equal(t, "idpcentral", cfg.Mongo.Database)
}
