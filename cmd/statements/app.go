package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/firestore"

	"github.com/castlemilk/cse-statements/internal/batch"
	"github.com/castlemilk/cse-statements/internal/config"
	"github.com/castlemilk/cse-statements/internal/extraction"
	"github.com/castlemilk/cse-statements/internal/report"
	"github.com/castlemilk/cse-statements/internal/store"
)

// commonFlags are shared by the extract and serve commands.
type commonFlags struct {
	configPath string
	envFile    string
	verbose    bool

	root     string
	output   string
	workers  int
	engine   string
	fallback string
	store    string
}

func (f *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "YAML config file")
	fs.StringVar(&f.envFile, "env", ".env", "dotenv file loaded when present")
	fs.BoolVar(&f.verbose, "v", false, "debug logging")
	fs.StringVar(&f.root, "root", "", "directory searched recursively for *.pdf")
	fs.StringVar(&f.output, "output", "", "output table: .csv, .xlsx or gs://bucket/object")
	fs.IntVar(&f.workers, "workers", 0, "files extracted concurrently")
	fs.StringVar(&f.engine, "engine", "", "text engine: ledongthuc or pdfcpu")
	fs.StringVar(&f.fallback, "fallback", "", "fallback text engine for files without a text layer")
	fs.StringVar(&f.store, "store", "", "run store: memory, sqlite or firestore")
}

// load resolves the configuration. Flags set on the command line override
// every other source.
func (f *commonFlags) load(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(f.configPath, f.envFile)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "root":
			cfg.Root = f.root
		case "output":
			cfg.Output = f.output
		case "workers":
			cfg.Workers = f.workers
		case "engine":
			cfg.TextEngine = f.engine
		case "fallback":
			cfg.FallbackEngine = f.fallback
		case "store":
			cfg.Store.Driver = f.store
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func engine(name string) extraction.TextSource {
	if name == config.EnginePDFCPU {
		return extraction.NewPDFCPUSource()
	}
	return extraction.NewLedongthucSource()
}

// buildSource returns the configured text source, wrapped with the fallback
// engine when one is set.
func buildSource(cfg *config.Config, logger *slog.Logger) extraction.TextSource {
	primary := engine(cfg.TextEngine)
	if cfg.FallbackEngine == config.EngineNone {
		return primary
	}
	return &extraction.FallbackSource{
		Primary:  primary,
		Fallback: engine(cfg.FallbackEngine),
		Logger:   logger,
	}
}

// openStore opens the configured run store. The returned close function
// releases its connection.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func() error, error) {
	switch cfg.Store.Driver {
	case config.StoreSQLite:
		s, err := store.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoreFirestore:
		client, err := firestore.NewClient(ctx, cfg.Store.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("create firestore client: %w", err)
		}
		s := store.NewFirestoreStore(client)
		return s, s.Close, nil
	default:
		return store.NewMemoryStore(), func() error { return nil }, nil
	}
}

// runBatch runs one batch over the configured root and writes the output
// table. The table is opened per run so gs:// clients do not outlive it.
func runBatch(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger, progress func(done, total int)) (store.Run, error) {
	table, err := report.Open(ctx, cfg.Output, report.Options{})
	if err != nil {
		return store.Run{}, fmt.Errorf("open output %s: %w", cfg.Output, err)
	}
	if c, ok := table.(io.Closer); ok {
		defer c.Close()
	}

	runner := batch.New(batch.Config{
		Root:       cfg.Root,
		Output:     cfg.Output,
		Workers:    cfg.Workers,
		Store:      st,
		OnProgress: progress,
		Logger:     logger,
	}, extraction.NewExtractor(buildSource(cfg, logger), logger), table)

	run, _, err := runner.Run(ctx)
	return run, err
}
