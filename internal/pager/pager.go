package pager

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/oda/rowstore/internal/dbfile"
	"github.com/oda/rowstore/pkg/metrics"
)

// Pager maps page numbers to in-memory page buffers.
// Pages are read from the file on first access and written back only by
// Flush, FlushAll or Close. The pager owns every buffer it hands out;
// callers may mutate a returned page but must not keep it past Close.
type Pager struct {
	file       *dbfile.File
	fileLength int64
	numPages   uint32
	maxPages   uint32
	pages      [][]byte // indexed by page number; nil when not resident
	resident   int

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Pager.
type Option func(*Pager)

// WithMaxPages sets the page limit. Zero keeps DefaultMaxPages.
func WithMaxPages(n uint32) Option {
	return func(p *Pager) {
		if n > 0 {
			p.maxPages = n
		}
	}
}

// WithLogger sets the logger used for page loads and flushes.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pager) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics records pager activity into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pager) {
		p.metrics = m
	}
}

// Open opens or creates a table file.
// The file length must be a whole number of pages; anything else is
// reported as ErrCorruptFile before any page is read.
func Open(path string, opts ...Option) (*Pager, error) {
	p := &Pager{
		maxPages: DefaultMaxPages,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	f, err := dbfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pager: %w", err)
	}

	length := f.Size()
	if length%PageSize != 0 {
		f.Close()
		return nil, fmt.Errorf("%w: file length %d is not a multiple of page size %d",
			ErrCorruptFile, length, PageSize)
	}

	p.file = f
	p.fileLength = length
	p.numPages = uint32(length / PageSize)
	p.pages = make([][]byte, 0, min(p.numPages, p.maxPages))

	p.logger.Debug("pager opened",
		zap.String("path", path),
		zap.Int64("file_length", length),
		zap.Uint32("num_pages", p.numPages))

	return p, nil
}

// GetPage returns the in-memory buffer for page n, loading it on first access.
// Pages inside the persisted range are read from the file; pages beyond it
// start zero-filled. Every later call for n returns the same buffer.
func (p *Pager) GetPage(n PageNum) ([]byte, error) {
	if p.file == nil {
		return nil, ErrClosed
	}
	if n >= p.maxPages {
		return nil, fmt.Errorf("%w: page %d, limit %d", ErrPageOutOfBounds, n, p.maxPages)
	}

	if int(n) < len(p.pages) && p.pages[n] != nil {
		p.metrics.ObserveCacheHit()
		return p.pages[n], nil
	}

	page := make([]byte, PageSize)
	if n < p.persistedPages() {
		if err := p.file.ReadAt(page, pageOffset(n)); err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", n, err)
		}
		p.metrics.ObservePageLoad()
		p.logger.Debug("page loaded", zap.Uint32("page", n))
	} else {
		p.metrics.ObservePageAlloc()
		p.logger.Debug("page allocated", zap.Uint32("page", n))
	}

	if int(n) >= len(p.pages) {
		p.pages = append(p.pages, make([][]byte, int(n)+1-len(p.pages))...)
	}
	p.pages[n] = page
	p.resident++
	p.metrics.SetResidentPages(p.resident)

	if n >= p.numPages {
		p.numPages = n + 1
	}

	return page, nil
}

// Flush writes the whole resident buffer of page n back to the file.
func (p *Pager) Flush(n PageNum) error {
	if p.file == nil {
		return ErrClosed
	}
	if !p.Resident(n) {
		return fmt.Errorf("%w: page %d", ErrEmptyPageFlush, n)
	}

	if err := p.file.WriteAt(p.pages[n], pageOffset(n)); err != nil {
		return fmt.Errorf("failed to flush page %d: %w", n, err)
	}
	if end := pageOffset(n + 1); end > p.fileLength {
		p.fileLength = end
	}

	p.metrics.ObserveFlush()
	p.logger.Debug("page flushed", zap.Uint32("page", n))
	return nil
}

// FlushAll flushes every resident page in page order.
// Pages that were never accessed are skipped.
func (p *Pager) FlushAll() error {
	for n := range p.pages {
		if p.pages[n] == nil {
			continue
		}
		if err := p.Flush(PageNum(n)); err != nil {
			return err
		}
	}
	return nil
}

// Sync forces flushed pages to stable storage.
func (p *Pager) Sync() error {
	if p.file == nil {
		return ErrClosed
	}
	return p.file.Sync()
}

// Close flushes all resident pages, optionally fsyncs, and closes the file.
// Page buffers are released; none may be used afterwards.
func (p *Pager) Close(sync bool) error {
	if p.file == nil {
		return ErrClosed
	}

	if err := p.FlushAll(); err != nil {
		p.file.Close()
		p.file = nil
		return err
	}
	if sync {
		if err := p.file.Sync(); err != nil {
			p.file.Close()
			p.file = nil
			return err
		}
	}

	err := p.file.Close()
	p.file = nil
	p.pages = nil
	p.resident = 0
	p.metrics.SetResidentPages(0)

	p.logger.Debug("pager closed", zap.Int64("file_length", p.fileLength))
	return err
}

// Resident reports whether page n currently has an in-memory buffer.
func (p *Pager) Resident(n PageNum) bool {
	return int(n) < len(p.pages) && p.pages[n] != nil
}

// PageCount returns the number of pages known to exist, on disk or in memory.
func (p *Pager) PageCount() uint32 {
	return p.numPages
}

// FileLength returns the current file length in bytes.
func (p *Pager) FileLength() int64 {
	return p.fileLength
}

// MaxPages returns the page limit.
func (p *Pager) MaxPages() uint32 {
	return p.maxPages
}

func (p *Pager) persistedPages() uint32 {
	return uint32(p.fileLength / PageSize)
}
