// Command idpkg builds the IDP knowledge graph from crawled Bioschemas markup
// of DisProt, MobiDB and PED, and answers descriptive questions about it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"idpkg-go/analytics"
	"idpkg-go/config"
	"idpkg-go/etl"
	"idpkg-go/export"
	"idpkg-go/logger"
	"idpkg-go/metadb"
	"idpkg-go/metrics"
	"idpkg-go/source"
	"idpkg-go/store"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "idpkg"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "IDP knowledge graph ETL and analytics",
		Long: `idpkg merges the Bioschemas markup crawled from DisProt, MobiDB and PED
into one knowledge graph with a named graph per crawl (IDPKG), flattens it
into the IDPcentral protein region model, and reports on the result.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: ./idpkg.yaml if present)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(&cobra.Command{
		Use:   "etl",
		Short: "Build IDPKG and IDPcentral from the crawled sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(configPath, logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runETL(cmd.Context(), cfg)
		},
	})

	var input string
	analyze := &cobra.Command{
		Use:   "analyze",
		Short: "Print statistics about the merged dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(configPath, logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if input == "" {
				input = cfg.Output.IDPKG
			}
			return runAnalyze(cmd.Context(), input)
		},
	}
	analyze.Flags().StringVarP(&input, "input", "i", "", "N-Quads file to analyse (default: output.idpkg)")
	cmd.AddCommand(analyze)

	cmd.AddCommand(configCmd())

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the idpkg configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration to a file (default: ./idpkg.yaml)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ProjectConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			return initConfig(path, force)
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

func initConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.Errorf("%s already exists, use --force to overwrite", path)
	}
	if err := config.DefaultConfig().SaveToFile(path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func setup(configPath, logLevel string) (*config.Config, error) {
	cfg, err := config.NewLoader().Load(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := logger.InitLogger(logger.ParseLevel(cfg.LogLevel)); err != nil {
		return nil, errors.Wrap(err, "init logger")
	}
	return cfg, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runETL(parent context.Context, cfg *config.Config) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	readers := make([]*source.Reader, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		readers = append(readers, source.NewReader(s.Name, s.Dir, s.Ext))
	}

	opts := []etl.Option{etl.WithWorkers(cfg.Workers)}
	var runMetrics *metrics.Run
	if cfg.Metrics.Textfile != "" {
		runMetrics = metrics.NewRun()
		opts = append(opts, etl.WithObserver(runMetrics))
	}

	logger.Info("Starting ETL", zap.Int("sources", len(readers)), zap.Int("workers", cfg.Workers))
	result, err := etl.NewPipeline(readers, opts...).Run(ctx)
	if err != nil {
		return err
	}
	if err := result.Check(cfg.Expect.Expectations()); err != nil {
		return err
	}

	outputs := []struct {
		path    string
		dataset *store.Dataset
	}{
		{cfg.Output.IDPKG, result.Dataset},
		{cfg.Output.IDPKGJSONLD, result.Dataset},
		{cfg.Output.IDPCentral, result.Flat},
		{cfg.Output.IDPCentralJSONLD, result.Flat},
	}
	for _, out := range outputs {
		if out.path == "" {
			continue
		}
		if _, err := export.WriteFile(out.path, out.dataset); err != nil {
			return err
		}
		if err := export.Verify(out.path, out.dataset); err != nil {
			return err
		}
	}

	if err := export.WriteReport(os.Stdout, result); err != nil {
		return err
	}

	if cfg.Mongo.URI != "" {
		if err := writeRecords(ctx, cfg.Mongo, result.Records); err != nil {
			return err
		}
	}

	if runMetrics != nil {
		runMetrics.SetTotals(len(result.Dataset.Contexts()), result.Dataset.Len(), result.Flat.Len())
		if err := runMetrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
	}

	logger.Info("Done",
		zap.Int("files", len(result.Files)),
		zap.Int("contexts", len(result.Dataset.Contexts())),
		zap.Int("merged", result.Dataset.Len()),
		zap.Int("flat", result.Flat.Len()))
	return nil
}

func writeRecords(ctx context.Context, cfg config.MongoConfig, records []etl.Record) error {
	sink, err := metadb.Connect(ctx, cfg.URI, cfg.Database, cfg.Threads)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Disconnect(context.Background()); err != nil {
			logger.Warn("Failed to disconnect from mongodb", zap.Error(err))
		}
	}()
	return sink.WriteRecords(ctx, records)
}

func runAnalyze(parent context.Context, path string) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	db, err := analytics.OpenFile(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := db.Run(ctx)
	if err != nil {
		return err
	}
	return report.Write(os.Stdout)
}
