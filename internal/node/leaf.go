package node

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/oda/rowstore/internal/row"
)

var (
	// ErrLeafFull is returned when inserting into a leaf at LeafNodeMaxCells.
	ErrLeafFull = errors.New("leaf node is full")
	// ErrCellOutOfRange is returned for an insert position past the last cell.
	ErrCellOutOfRange = errors.New("cell index out of range")
)

// LeafNode provides operations on a leaf node's raw byte slice.
// The layout is:
//   - Header: 10 bytes (common header + NumCells)
//   - Cells: [(key uint32, row [291]byte) × NumCells] starting at offset 10
//
// With 295-byte cells, 13 cells fit and the last 251 bytes are unused.
type LeafNode struct {
	data []byte
}

// NewLeafNode creates a new leaf node wrapper around raw bytes.
// If init is true, initializes the node as an empty leaf.
func NewLeafNode(data []byte, init bool) *LeafNode {
	n := &LeafNode{data: data}
	if init {
		SetNodeType(data, NodeTypeLeaf)
		SetRoot(data, false)
		SetParentPointer(data, 0)
		n.SetNumCells(0)
	}
	return n
}

// Type returns the node type.
func (n *LeafNode) Type() NodeType {
	return GetNodeType(n.data)
}

// NumCells returns the number of valid cells.
func (n *LeafNode) NumCells() uint32 {
	return binary.LittleEndian.Uint32(n.data[LeafNodeNumCellsOffset : LeafNodeNumCellsOffset+LeafNodeNumCellsSize])
}

// SetNumCells sets the cell counter.
func (n *LeafNode) SetNumCells(count uint32) {
	binary.LittleEndian.PutUint32(n.data[LeafNodeNumCellsOffset:LeafNodeNumCellsOffset+LeafNodeNumCellsSize], count)
}

// IsFull returns true if the node cannot accept more cells.
func (n *LeafNode) IsFull() bool {
	return n.NumCells() >= LeafNodeMaxCells
}

// cellOffset returns the byte offset for cell i.
func cellOffset(i uint32) int {
	return LeafNodeHeaderSize + int(i)*LeafNodeCellSize
}

// Cell returns the bytes of cell i. Only cells below NumCells hold data,
// unless the caller is about to populate the slot.
func (n *LeafNode) Cell(i uint32) []byte {
	off := cellOffset(i)
	return n.data[off : off+LeafNodeCellSize]
}

// Key returns the key of cell i.
func (n *LeafNode) Key(i uint32) uint32 {
	off := cellOffset(i) + LeafNodeKeyOffset
	return binary.LittleEndian.Uint32(n.data[off : off+LeafNodeKeySize])
}

// SetKey sets the key of cell i.
func (n *LeafNode) SetKey(i uint32, key uint32) {
	off := cellOffset(i) + LeafNodeKeyOffset
	binary.LittleEndian.PutUint32(n.data[off:off+LeafNodeKeySize], key)
}

// Value returns the serialized row bytes of cell i.
func (n *LeafNode) Value(i uint32) []byte {
	off := cellOffset(i) + LeafNodeValueOffset
	return n.data[off : off+LeafNodeValueSize]
}

// ShiftCellRight copies cell i-1 into the slot of cell i.
func (n *LeafNode) ShiftCellRight(i uint32) {
	// copy has memmove semantics, so overlapping ranges are safe.
	copy(n.Cell(i), n.Cell(i-1))
}

// Insert writes key and r into cell idx, shifting cells at or after idx
// one slot to the right.
func (n *LeafNode) Insert(idx uint32, key uint32, r *row.Row) error {
	count := n.NumCells()
	if count >= LeafNodeMaxCells {
		return fmt.Errorf("%w: %d cells", ErrLeafFull, count)
	}
	if idx > count {
		return fmt.Errorf("%w: insert at %d with %d cells", ErrCellOutOfRange, idx, count)
	}

	for i := count; i > idx; i-- {
		n.ShiftCellRight(i)
	}

	n.SetNumCells(count + 1)
	n.SetKey(idx, key)
	r.Serialize(n.Value(idx))

	return nil
}

// Search finds the index of the given key using binary search, assuming
// cells are sorted by key.
// Returns (index, found). If not found, index is where it should be inserted.
func (n *LeafNode) Search(key uint32) (uint32, bool) {
	count := n.NumCells()
	idx := uint32(sort.Search(int(count), func(i int) bool {
		return n.Key(uint32(i)) >= key
	}))
	if idx < count && n.Key(idx) == key {
		return idx, true
	}
	return idx, false
}

// Keys returns the key of every valid cell in cell order.
func (n *LeafNode) Keys() []uint32 {
	count := n.NumCells()
	keys := make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		keys[i] = n.Key(i)
	}
	return keys
}
