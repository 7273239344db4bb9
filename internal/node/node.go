// Package node interprets pages as B-tree nodes.
package node

import (
	"encoding/binary"

	"github.com/oda/rowstore/internal/pager"
	"github.com/oda/rowstore/internal/row"
)

// Common header layout:
// Byte 0: NodeType (1 byte)
// Byte 1: IsRoot (1 byte)
// Byte 2-5: ParentPointer (4 bytes, little endian), reserved for internal nodes
const (
	NodeTypeSize        = 1
	NodeTypeOffset      = 0
	IsRootSize          = 1
	IsRootOffset        = NodeTypeOffset + NodeTypeSize
	ParentPointerSize   = 4
	ParentPointerOffset = IsRootOffset + IsRootSize

	CommonNodeHeaderSize = NodeTypeSize + IsRootSize + ParentPointerSize // 6
)

// Leaf header layout: the common header followed by
// Byte 6-9: NumCells (4 bytes, little endian)
const (
	LeafNodeNumCellsSize   = 4
	LeafNodeNumCellsOffset = CommonNodeHeaderSize
	LeafNodeHeaderSize     = CommonNodeHeaderSize + LeafNodeNumCellsSize // 10
)

// Leaf body layout: an array of cells, each a key followed by a serialized row.
const (
	LeafNodeKeySize     = 4
	LeafNodeKeyOffset   = 0
	LeafNodeValueSize   = row.Size
	LeafNodeValueOffset = LeafNodeKeyOffset + LeafNodeKeySize
	LeafNodeCellSize    = LeafNodeKeySize + LeafNodeValueSize // 295

	LeafNodeSpaceForCells = pager.PageSize - LeafNodeHeaderSize // 4086

	// LeafNodeMaxCells is the number of cells that fit in one leaf: 13.
	LeafNodeMaxCells = LeafNodeSpaceForCells / LeafNodeCellSize
)

// NodeType indicates the type of node.
// Only leaves are populated today; internal nodes keep the on-disk
// discriminator stable for when splitting is added.
type NodeType uint8

const (
	// NodeTypeInternal represents an internal (branch) node.
	NodeTypeInternal NodeType = 0
	// NodeTypeLeaf represents a leaf node.
	NodeTypeLeaf NodeType = 1
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeInternal:
		return "internal"
	case NodeTypeLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// GetNodeType returns the type of the node from raw bytes.
func GetNodeType(data []byte) NodeType {
	return NodeType(data[NodeTypeOffset])
}

// SetNodeType writes the node type discriminator.
func SetNodeType(data []byte, t NodeType) {
	data[NodeTypeOffset] = byte(t)
}

// IsRoot reports whether the node is flagged as the tree root.
func IsRoot(data []byte) bool {
	return data[IsRootOffset] != 0
}

// SetRoot sets or clears the root flag.
func SetRoot(data []byte, root bool) {
	if root {
		data[IsRootOffset] = 1
	} else {
		data[IsRootOffset] = 0
	}
}

// ParentPointer returns the parent page number.
func ParentPointer(data []byte) uint32 {
	return binary.LittleEndian.Uint32(data[ParentPointerOffset : ParentPointerOffset+ParentPointerSize])
}

// SetParentPointer sets the parent page number.
func SetParentPointer(data []byte, parent uint32) {
	binary.LittleEndian.PutUint32(data[ParentPointerOffset:ParentPointerOffset+ParentPointerSize], parent)
}
