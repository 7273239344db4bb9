package rowstore

import (
	"fmt"

	"github.com/oda/rowstore/internal/node"
	"github.com/oda/rowstore/internal/pager"
)

// Cursor is a position in the table: a page, a cell within it, and whether
// the position is past the last cell.
// A cursor is valid only for the single traversal or insert it was created
// for; any insert through another cursor invalidates it.
type Cursor struct {
	table      *Table
	pageNum    pager.PageNum
	cellNum    uint32
	endOfTable bool
}

// Start returns a cursor at the first cell of the root leaf.
func (t *Table) Start() (*Cursor, error) {
	leaf, err := t.leaf(t.rootPage)
	if err != nil {
		return nil, err
	}

	return &Cursor{
		table:      t,
		pageNum:    t.rootPage,
		cellNum:    0,
		endOfTable: leaf.NumCells() == 0,
	}, nil
}

// End returns a cursor one past the last cell of the root leaf.
func (t *Table) End() (*Cursor, error) {
	leaf, err := t.leaf(t.rootPage)
	if err != nil {
		return nil, err
	}

	return &Cursor{
		table:      t,
		pageNum:    t.rootPage,
		cellNum:    leaf.NumCells(),
		endOfTable: true,
	}, nil
}

// find returns a cursor at the position of key in a key-sorted root leaf,
// and whether the key is already present.
func (t *Table) find(key uint32) (*Cursor, bool, error) {
	leaf, err := t.leaf(t.rootPage)
	if err != nil {
		return nil, false, err
	}

	idx, found := leaf.Search(key)
	return &Cursor{
		table:      t,
		pageNum:    t.rootPage,
		cellNum:    idx,
		endOfTable: idx == leaf.NumCells(),
	}, found, nil
}

// EndOfTable reports whether the cursor is past the last cell.
func (c *Cursor) EndOfTable() bool {
	return c.endOfTable
}

// CellNum returns the cell index the cursor points at.
func (c *Cursor) CellNum() uint32 {
	return c.cellNum
}

// Advance moves to the next cell.
func (c *Cursor) Advance() error {
	leaf, err := c.table.leaf(c.pageNum)
	if err != nil {
		return err
	}

	c.cellNum++
	if c.cellNum >= leaf.NumCells() {
		c.endOfTable = true
	}
	return nil
}

// Value returns the serialized row bytes of the current cell.
// The slice aliases the page buffer: writes go straight into the page.
func (c *Cursor) Value() ([]byte, error) {
	if c.cellNum >= node.LeafNodeMaxCells {
		return nil, fmt.Errorf("%w: cell %d", node.ErrCellOutOfRange, c.cellNum)
	}
	leaf, err := c.table.leaf(c.pageNum)
	if err != nil {
		return nil, err
	}
	return leaf.Value(c.cellNum), nil
}

func (c *Cursor) leaf() (*node.LeafNode, error) {
	return c.table.leaf(c.pageNum)
}
