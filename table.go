// Package rowstore provides a single-table row store persisted in a
// page-oriented file.
//
// Rows have a fixed schema (id, username, email) and live in the cells of a
// B-tree leaf stored at page 0. Pages are cached in memory and written back
// when the table is closed.
//
// Example:
//
//	table, err := rowstore.Open("db.dat")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer table.Close()
//
//	table.Insert(rowstore.NewRow(1, "alice", "alice@x.com"))
//	for r, err := range table.Rows() {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(r) // (1, alice, alice@x.com)
//	}
package rowstore

import (
	"errors"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/oda/rowstore/internal/node"
	"github.com/oda/rowstore/internal/pager"
	"github.com/oda/rowstore/internal/row"
)

var (
	// ErrTableFull is returned by Insert when the root leaf has no free cell.
	// No data is changed.
	ErrTableFull = errors.New("table full")
	// ErrDuplicateKey is returned by Insert in sorted mode for an existing id.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrClosed is returned for operations on a closed table.
	ErrClosed = errors.New("table is closed")
	// ErrUnsortedLeaf is returned by Open in sorted mode when the existing
	// root leaf is not in strictly ascending key order.
	ErrUnsortedLeaf = errors.New("root leaf is not sorted by key")
)

// Row is one record of the table.
type Row = row.Row

// NewRow builds a Row. username and email must already fit their columns
// (32 and 255 bytes).
func NewRow(id uint32, username, email string) Row {
	return row.New(id, username, email)
}

// Table is the engine entry point. It owns the pager and the root page.
// A Table is not safe for concurrent use.
type Table struct {
	pager    *pager.Pager
	rootPage pager.PageNum
	path     string
	opts     options
	closed   bool
}

// Open opens or creates the table stored at path.
// An empty file gets page 0 initialized as an empty root leaf.
func Open(path string, opts ...Option) (*Table, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p, err := pager.Open(path,
		pager.WithMaxPages(o.maxPages),
		pager.WithLogger(o.logger),
		pager.WithMetrics(o.metrics),
	)
	if err != nil {
		return nil, err
	}

	t := &Table{
		pager:    p,
		rootPage: 0,
		path:     path,
		opts:     o,
	}

	if p.PageCount() == 0 {
		page, err := p.GetPage(t.rootPage)
		if err != nil {
			p.Close(false)
			return nil, fmt.Errorf("failed to initialize root: %w", err)
		}
		node.NewLeafNode(page, true)
		node.SetRoot(page, true)
	} else {
		page, err := p.GetPage(t.rootPage)
		if err != nil {
			p.Close(false)
			return nil, fmt.Errorf("failed to load root: %w", err)
		}
		if nt := node.GetNodeType(page); nt != node.NodeTypeLeaf {
			p.Close(false)
			return nil, fmt.Errorf("%w: root page is a %s node", pager.ErrCorruptFile, nt)
		}
		root := node.NewLeafNode(page, false)
		if n := root.NumCells(); n > node.LeafNodeMaxCells {
			p.Close(false)
			return nil, fmt.Errorf("%w: root leaf claims %d cells", pager.ErrCorruptFile, n)
		}
		// Sorted inserts binary search the leaf, which only works on ordered keys.
		if o.sortedInsert {
			if i, ok := ascending(root.Keys()); !ok {
				p.Close(false)
				return nil, fmt.Errorf("%w: cell %d", ErrUnsortedLeaf, i)
			}
		}
	}

	o.logger.Info("table opened",
		zap.String("path", path),
		zap.Uint32("pages", p.PageCount()),
		zap.Bool("sorted_insert", o.sortedInsert))

	return t, nil
}

// Insert stores r keyed by its id.
// It returns ErrTableFull without changing anything when the root leaf is full.
func (t *Table) Insert(r Row) error {
	if t.closed {
		return ErrClosed
	}

	root, err := t.leaf(t.rootPage)
	if err != nil {
		return err
	}
	if root.NumCells() >= node.LeafNodeMaxCells {
		t.opts.metrics.ObserveTableFull()
		t.opts.logger.Warn("insert rejected: table full",
			zap.Uint32("id", r.ID),
			zap.Uint32("cells", root.NumCells()))
		return ErrTableFull
	}

	var cursor *Cursor
	if t.opts.sortedInsert {
		var found bool
		cursor, found, err = t.find(r.ID)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %d", ErrDuplicateKey, r.ID)
		}
	} else {
		cursor, err = t.End()
		if err != nil {
			return err
		}
	}

	leaf, err := cursor.leaf()
	if err != nil {
		return err
	}
	if err := leaf.Insert(cursor.cellNum, r.ID, &r); err != nil {
		return fmt.Errorf("insert into page %d: %w", cursor.pageNum, err)
	}

	t.opts.metrics.ObserveInsert()
	t.opts.logger.Debug("row inserted",
		zap.Uint32("id", r.ID),
		zap.Uint32("cell", cursor.cellNum))
	return nil
}

// Rows returns the rows in cell order. The sequence reads lazily from the
// page cache; call Rows again to restart. Inserting while ranging is not
// allowed.
func (t *Table) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if t.closed {
			yield(Row{}, ErrClosed)
			return
		}

		cursor, err := t.Start()
		if err != nil {
			yield(Row{}, err)
			return
		}

		for !cursor.EndOfTable() {
			buf, err := cursor.Value()
			if err != nil {
				yield(Row{}, err)
				return
			}

			var r Row
			r.Deserialize(buf)
			if !yield(r, nil) {
				return
			}

			if err := cursor.Advance(); err != nil {
				yield(Row{}, err)
				return
			}
		}
	}
}

// Select collects every row in cell order.
func (t *Table) Select() ([]Row, error) {
	var rows []Row
	for r, err := range t.Rows() {
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// Find returns the first row with the given id.
// This is a linear scan since cells are not assumed to be sorted.
func (t *Table) Find(id uint32) (Row, bool, error) {
	for r, err := range t.Rows() {
		if err != nil {
			return Row{}, false, err
		}
		if r.ID == id {
			return r, true, nil
		}
	}
	return Row{}, false, nil
}

// Count returns the number of rows.
func (t *Table) Count() (uint32, error) {
	if t.closed {
		return 0, ErrClosed
	}
	root, err := t.leaf(t.rootPage)
	if err != nil {
		return 0, err
	}
	return root.NumCells(), nil
}

// Keys returns the key of every cell of the root leaf in cell order.
func (t *Table) Keys() ([]uint32, error) {
	if t.closed {
		return nil, ErrClosed
	}
	root, err := t.leaf(t.rootPage)
	if err != nil {
		return nil, err
	}
	return root.Keys(), nil
}

// Path returns the file the table was opened from.
func (t *Table) Path() string {
	return t.path
}

// Close flushes every resident page to the file and releases it.
// The table cannot be used afterwards.
func (t *Table) Close() error {
	if t.closed {
		return ErrClosed
	}
	t.closed = true

	pages := t.pager.PageCount()
	if err := t.pager.Close(t.opts.syncOnClose); err != nil {
		t.opts.logger.Error("failed to close table", zap.String("path", t.path), zap.Error(err))
		return fmt.Errorf("failed to close table: %w", err)
	}

	t.opts.logger.Info("table closed",
		zap.String("path", t.path),
		zap.Uint32("pages", pages))
	return nil
}

// ascending reports whether keys are strictly increasing. When they are not,
// it returns the index of the first key out of order.
func ascending(keys []uint32) (int, bool) {
	for i := 1; i < len(keys); i++ {
		if keys[i] <= keys[i-1] {
			return i, false
		}
	}
	return 0, true
}

func (t *Table) leaf(n pager.PageNum) (*node.LeafNode, error) {
	page, err := t.pager.GetPage(n)
	if err != nil {
		return nil, err
	}
	return node.NewLeafNode(page, false), nil
}
