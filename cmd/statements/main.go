// Command statements extracts quarterly P&L figures from CSE interim report
// PDFs into a single table, and serves stored runs over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/castlemilk/cse-statements/internal/report"
	"github.com/castlemilk/cse-statements/internal/server"
	"github.com/castlemilk/cse-statements/internal/store"
)

const usage = `usage: statements <command> [flags]

commands:
  extract   extract every PDF under the root into the output table
  clean     keep the headline columns of an output table
  serve     serve stored runs over HTTP and start runs on request

run "statements <command> -h" for command flags`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "extract":
		err = runExtract(ctx, os.Args[2:])
	case "clean":
		err = runClean(os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("statements failed", "command", os.Args[1], "err", err)
		os.Exit(1)
	}
}

func runExtract(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	var flags commonFlags
	flags.register(fs)
	fs.Parse(args)

	logger := newLogger(os.Stderr, flags.verbose)
	slog.SetDefault(logger)
	cfg, err := flags.load(fs)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	run, err := runBatch(ctx, cfg, st, logger, nil)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d rows to %s (%d failed)\n", run.Rows, cfg.Output, run.Failed)
	return nil
}

func runClean(args []string) error {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	in := fs.String("in", "data/processed/financial_data.csv", "output table to clean")
	out := fs.String("out", "data/processed/clean_dataset.csv", "clean dataset path")
	fs.Parse(args)

	if err := report.CleanFile(*in, *out); err != nil {
		return err
	}
	fmt.Printf("Wrote clean dataset to %s\n", *out)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var flags commonFlags
	flags.register(fs)
	port := fs.String("port", "", "listen port (default from PORT or 8111)")
	fs.Parse(args)

	logger := newLogger(os.Stderr, flags.verbose)
	slog.SetDefault(logger)
	cfg, err := flags.load(fs)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := server.New(server.Config{
		Store: st,
		Run: func(ctx context.Context, progress func(done, total int)) (store.Run, error) {
			return runBatch(ctx, cfg, st, logger, progress)
		},
		JobTTL:         cfg.Server.JobTTL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", httpSrv.Addr, "store", cfg.Store.Driver)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
