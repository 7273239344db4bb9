package pager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oda/rowstore/pkg/metrics"
)

func testPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.db")
}

func TestOpenClose(t *testing.T) {
	path := testPath(t)

	p, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, PageNum(0), p.PageCount())
	assert.Equal(t, uint32(DefaultMaxPages), p.MaxPages())

	require.NoError(t, p.Close(false))

	// Nothing was touched, so nothing was written.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestGetPage(t *testing.T) {
	p, err := Open(testPath(t))
	require.NoError(t, err)
	defer p.Close(false)

	page, err := p.GetPage(0)
	require.NoError(t, err)
	require.Len(t, page, PageSize)
	assert.Equal(t, make([]byte, PageSize), page, "new page should be zero-filled")

	// Mutations are visible through later calls.
	copy(page[0:5], "hello")
	again, err := p.GetPage(0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(again[0:5]))

	assert.Equal(t, PageNum(1), p.PageCount())
}

func TestGetPageExtendsPageCount(t *testing.T) {
	p, err := Open(testPath(t))
	require.NoError(t, err)
	defer p.Close(false)

	_, err = p.GetPage(5)
	require.NoError(t, err)

	assert.Equal(t, PageNum(6), p.PageCount())
	assert.False(t, p.Resident(3))
	assert.True(t, p.Resident(5))
}

func TestPageOutOfBounds(t *testing.T) {
	p, err := Open(testPath(t), WithMaxPages(3))
	require.NoError(t, err)
	defer p.Close(false)

	_, err = p.GetPage(2)
	require.NoError(t, err)

	_, err = p.GetPage(3)
	assert.ErrorIs(t, err, ErrPageOutOfBounds)
	assert.Equal(t, PageNum(3), p.PageCount(), "out-of-bounds access must not allocate")
}

func TestEmptyPageFlush(t *testing.T) {
	p, err := Open(testPath(t))
	require.NoError(t, err)
	defer p.Close(false)

	assert.ErrorIs(t, p.Flush(0), ErrEmptyPageFlush)
}

func TestPersistence(t *testing.T) {
	path := testPath(t)

	p1, err := Open(path)
	require.NoError(t, err)
	page, err := p1.GetPage(1)
	require.NoError(t, err)
	copy(page[0:5], "hello")
	require.NoError(t, p1.Close(true))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(2*PageSize), info.Size())

	p2, err := Open(path)
	require.NoError(t, err)
	defer p2.Close(false)

	assert.Equal(t, PageNum(2), p2.PageCount())

	page2, err := p2.GetPage(1)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(page2[0:5]))
}

func TestFlushNeverShrinks(t *testing.T) {
	path := testPath(t)

	p1, err := Open(path)
	require.NoError(t, err)
	_, err = p1.GetPage(3)
	require.NoError(t, err)
	require.NoError(t, p1.Close(false))

	// Only page 0 is touched this time; the file keeps its four pages.
	p2, err := Open(path)
	require.NoError(t, err)
	_, err = p2.GetPage(0)
	require.NoError(t, err)
	require.NoError(t, p2.Close(false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4*PageSize), info.Size())
}

func TestCorruptFile(t *testing.T) {
	path := testPath(t)
	require.NoError(t, os.WriteFile(path, make([]byte, PageSize+1), 0644))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrCorruptFile)

	// The lock must have been released on failure.
	require.NoError(t, os.Truncate(path, PageSize))
	p, err := Open(path)
	require.NoError(t, err)
	p.Close(false)
}

func TestClosedPager(t *testing.T) {
	p, err := Open(testPath(t))
	require.NoError(t, err)
	require.NoError(t, p.Close(false))

	_, err = p.GetPage(0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, p.Close(false), ErrClosed)
}

func TestMetrics(t *testing.T) {
	path := testPath(t)
	m := metrics.New()

	p1, err := Open(path, WithMetrics(m))
	require.NoError(t, err)
	for _, n := range []PageNum{0, 0, 1} {
		_, err := p1.GetPage(n)
		require.NoError(t, err)
	}
	require.NoError(t, p1.Close(false))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PageAllocs))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PageFlushes))

	p2, err := Open(path, WithMetrics(m))
	require.NoError(t, err)
	defer p2.Close(false)
	_, err = p2.GetPage(1)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PageLoads))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResidentPages))
}
