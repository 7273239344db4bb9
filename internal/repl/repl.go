// Package repl runs the interactive command loop over a table.
package repl

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/oda/rowstore"
	"github.com/oda/rowstore/internal/node"
	"github.com/oda/rowstore/internal/row"
	"github.com/oda/rowstore/internal/statement"
	"github.com/oda/rowstore/pkg/metrics"
)

// Prompt is printed before every input line.
const Prompt = "db > "

// REPL reads commands, runs them against a table and prints results.
type REPL struct {
	table   *rowstore.Table
	in      LineReader
	out     io.Writer
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Option configures a REPL.
type Option func(*REPL)

// WithMetrics makes .stats print m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *REPL) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *REPL) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a REPL. The REPL closes table when it stops.
func New(table *rowstore.Table, in LineReader, out io.Writer, opts ...Option) *REPL {
	r := &REPL{
		table:  table,
		in:     in,
		out:    out,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes input until .exit or end of input. Either way the table is
// closed, so every page held in memory reaches the file.
// Only storage failures are returned; bad input is reported to out.
func (r *REPL) Run() error {
	for {
		line, err := r.in.Readline()
		if errors.Is(err, io.EOF) {
			return r.table.Close()
		}
		if err != nil {
			r.table.Close()
			return fmt.Errorf("failed to read input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, ".") {
			exit, err := r.doMetaCommand(input)
			if err != nil {
				return err
			}
			if exit {
				return nil
			}
			continue
		}

		if err := r.execute(input); err != nil {
			r.table.Close()
			return err
		}
	}
}

func (r *REPL) execute(input string) error {
	stmt, err := statement.Prepare(input)
	switch {
	case err == nil:
	case errors.Is(err, statement.ErrUnrecognized):
		fmt.Fprintf(r.out, "Unrecognized keyword at start of '%s'\n", input)
		return nil
	case errors.Is(err, statement.ErrStringTooLong):
		fmt.Fprintln(r.out, "String is too long.")
		return nil
	case errors.Is(err, statement.ErrNegativeID):
		fmt.Fprintln(r.out, "ID must be positive.")
		return nil
	default:
		fmt.Fprintln(r.out, "Syntax error. Could not parse statement.")
		return nil
	}

	err = stmt.Execute(r.table, r.out)
	switch {
	case err == nil:
		fmt.Fprintln(r.out, "Executed.")
	case errors.Is(err, rowstore.ErrTableFull):
		fmt.Fprintln(r.out, "Error: Table full.")
	case errors.Is(err, rowstore.ErrDuplicateKey):
		fmt.Fprintln(r.out, "Error: Duplicate key.")
	default:
		r.logger.Error("statement failed", zap.String("type", stmt.Type.String()), zap.Error(err))
		return fmt.Errorf("%s failed: %w", stmt.Type, err)
	}
	return nil
}

// doMetaCommand handles commands starting with '.'.
// It reports whether the loop should stop.
func (r *REPL) doMetaCommand(input string) (bool, error) {
	switch input {
	case ".exit":
		return true, r.table.Close()
	case ".constants":
		fmt.Fprintln(r.out, "Constants:")
		printConstants(r.out)
		return false, nil
	case ".btree":
		keys, err := r.table.Keys()
		if err != nil {
			r.table.Close()
			return true, err
		}
		fmt.Fprintln(r.out, "Tree:")
		printLeaf(r.out, keys)
		return false, nil
	case ".stats":
		if err := r.metrics.WriteText(r.out); err != nil {
			r.logger.Warn("failed to print stats", zap.Error(err))
		}
		return false, nil
	default:
		fmt.Fprintf(r.out, "Unrecognized command: %s\n", input)
		return false, nil
	}
}

func printConstants(w io.Writer) {
	fmt.Fprintf(w, "ROW_SIZE: %d\n", row.Size)
	fmt.Fprintf(w, "COMMON_NODE_HEADER_SIZE: %d\n", node.CommonNodeHeaderSize)
	fmt.Fprintf(w, "LEAF_NODE_HEADER_SIZE: %d\n", node.LeafNodeHeaderSize)
	fmt.Fprintf(w, "LEAF_NODE_CELL_SIZE: %d\n", node.LeafNodeCellSize)
	fmt.Fprintf(w, "LEAF_NODE_SPACE_FOR_CELLS: %d\n", node.LeafNodeSpaceForCells)
	fmt.Fprintf(w, "LEAF_NODE_MAX_CELLS: %d\n", node.LeafNodeMaxCells)
}

func printLeaf(w io.Writer, keys []uint32) {
	fmt.Fprintf(w, "leaf (size %d)\n", len(keys))
	for i, key := range keys {
		fmt.Fprintf(w, "  - %d : %d\n", i, key)
	}
}
