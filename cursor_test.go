package rowstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oda/rowstore/internal/node"
	"github.com/oda/rowstore/internal/row"
)

func TestCursorOnEmptyTable(t *testing.T) {
	table, _ := openTable(t)
	defer table.Close()

	start, err := table.Start()
	require.NoError(t, err)
	assert.True(t, start.EndOfTable())
	assert.Equal(t, uint32(0), start.CellNum())

	end, err := table.End()
	require.NoError(t, err)
	assert.True(t, end.EndOfTable())
	assert.Equal(t, uint32(0), end.CellNum())
}

func TestCursorWalk(t *testing.T) {
	table, _ := openTable(t)
	defer table.Close()

	for i := uint32(1); i <= 3; i++ {
		require.NoError(t, table.Insert(testRow(i)))
	}

	c, err := table.Start()
	require.NoError(t, err)
	assert.False(t, c.EndOfTable())

	var ids []uint32
	for !c.EndOfTable() {
		buf, err := c.Value()
		require.NoError(t, err)
		require.Len(t, buf, row.Size)

		var r row.Row
		r.Deserialize(buf)
		ids = append(ids, r.ID)

		require.NoError(t, c.Advance())
	}
	assert.Equal(t, []uint32{1, 2, 3}, ids)
	assert.Equal(t, uint32(3), c.CellNum())

	end, err := table.End()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), end.CellNum())
	assert.True(t, end.EndOfTable())
}

func TestCursorValueWritesThrough(t *testing.T) {
	table, _ := openTable(t)
	defer table.Close()

	require.NoError(t, table.Insert(testRow(1)))

	c, err := table.Start()
	require.NoError(t, err)
	buf, err := c.Value()
	require.NoError(t, err)

	updated := NewRow(1, "renamed", "renamed@example.com")
	updated.Serialize(buf)

	rows, err := table.Select()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, updated, rows[0])
}

func TestCursorValuePastCapacity(t *testing.T) {
	table, _ := openTable(t)
	defer table.Close()

	for i := uint32(0); i < node.LeafNodeMaxCells; i++ {
		require.NoError(t, table.Insert(testRow(i)))
	}

	end, err := table.End()
	require.NoError(t, err)
	_, err = end.Value()
	assert.ErrorIs(t, err, node.ErrCellOutOfRange)
}
