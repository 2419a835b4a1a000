package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idpkg-go/config"
	"idpkg-go/etl"
)

func fixtureConfig(t *testing.T) *config.Config {
	t.Helper()
	out := t.TempDir()
	cfg := config.DefaultConfig()
	for i, dir := range []string{"disprot", "mobidb", "ped"} {
		cfg.Sources[i].Dir = filepath.Join("testdata", dir)
	}
	cfg.Output = config.OutputConfig{
		IDPKG:            filepath.Join(out, "IDPKG", "idpkg.nq"),
		IDPKGJSONLD:      filepath.Join(out, "IDPKG", "idpkg.jsonld"),
		IDPCentral:       filepath.Join(out, "IDPcentral", "idpcentral.ttl"),
		IDPCentralJSONLD: filepath.Join(out, "IDPcentral", "idpcentral.jsonld"),
	}
	cfg.Workers = 2
	cfg.Metrics.Textfile = filepath.Join(out, "idpkg.prom")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunETL(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.Expect = config.ExpectConfig{Files: 8, FlatStatements: 59, MergedStatements: 80, Contexts: 6}

	require.NoError(t, runETL(context.Background(), cfg))

	for _, path := range []string{cfg.Output.IDPKG, cfg.Output.IDPKGJSONLD, cfg.Output.IDPCentral, cfg.Output.IDPCentralJSONLD} {
		assert.FileExists(t, path)
	}
	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `idpkg_files_skipped_total{reason="no_provenance",source="PED"} 1`)
	assert.Contains(t, string(prom), "idpkg_contexts 6")

	require.NoError(t, runAnalyze(context.Background(), cfg.Output.IDPKG))
}

func TestRunETLFailsOnExpectations(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.Expect = config.ExpectConfig{Files: 8, FlatStatements: 108, MergedStatements: 228, Contexts: 8}

	err := runETL(context.Background(), cfg)
	assert.ErrorIs(t, err, etl.ErrCheckFailed)
	assert.NoFileExists(t, cfg.Output.IDPKG, "nothing is written when a check fails")
}

func TestRootCommand(t *testing.T) {
	cmd := rootCmd()
	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["etl"])
	assert.True(t, names["analyze"])
	assert.True(t, names["version"])
	assert.True(t, names["config"])
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idpkg.yaml")

	require.NoError(t, initConfig(path, false))
	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	assert.Error(t, initConfig(path, false), "an existing file is kept")
	assert.NoError(t, initConfig(path, true))
}
