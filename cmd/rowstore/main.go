// Command rowstore is an interactive shell over a single-table row store.
//
// Usage:
//
//	rowstore [-config rowstore.yaml] [-log-level debug] [db.dat]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/oda/rowstore"
	"github.com/oda/rowstore/internal/config"
	"github.com/oda/rowstore/internal/logging"
	"github.com/oda/rowstore/internal/repl"
	"github.com/oda/rowstore/pkg/metrics"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("rowstore", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	logLevel := fs.String("log-level", "", "override the configured log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if fs.NArg() > 0 {
		cfg.DBPath = fs.Arg(0)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	m := metrics.New()
	table, err := rowstore.Open(cfg.DBPath,
		rowstore.WithLogger(logger),
		rowstore.WithMetrics(m),
		rowstore.WithMaxPages(cfg.MaxPages),
		rowstore.WithSyncOnClose(cfg.SyncOnClose),
		rowstore.WithSortedInsert(cfg.SortedInsert),
	)
	if err != nil {
		logger.Error("failed to open table", zap.String("path", cfg.DBPath), zap.Error(err))
		return err
	}

	var (
		in  repl.LineReader
		out io.Writer = os.Stdout
	)
	if repl.IsTerminal() {
		term, err := repl.NewTerminalReader(repl.Prompt)
		if err != nil {
			table.Close()
			return err
		}
		defer term.Close()
		in, out = term, term.Stdout()
	} else {
		in = repl.NewLineReader(os.Stdin, os.Stdout, repl.Prompt)
	}

	return repl.New(table, in, out,
		repl.WithLogger(logger),
		repl.WithMetrics(m),
	).Run()
}
