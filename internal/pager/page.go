// Package pager caches fixed-size pages of a table file in memory.
package pager

import (
	"errors"
)

const (
	// PageSize is the size of each page in bytes.
	// 4096 bytes is the standard OS page size and the unit of all I/O.
	PageSize = 4096

	// DefaultMaxPages bounds the number of pages a table may address.
	DefaultMaxPages = 100
)

// PageNum is the index of a page within the table file.
type PageNum = uint32

var (
	// ErrPageOutOfBounds is returned for a page number at or past the page limit.
	ErrPageOutOfBounds = errors.New("page number out of bounds")
	// ErrEmptyPageFlush is returned when flushing a page that was never loaded.
	ErrEmptyPageFlush = errors.New("tried to flush a page that is not resident")
	// ErrCorruptFile is returned when the table file cannot be a valid table.
	ErrCorruptFile = errors.New("corrupt database file")
	// ErrClosed is returned for operations on a closed pager.
	ErrClosed = errors.New("pager is closed")
)

// pageOffset returns the file offset of page n.
func pageOffset(n PageNum) int64 {
	return int64(n) * PageSize
}
