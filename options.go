package rowstore

import (
	"go.uber.org/zap"

	"github.com/oda/rowstore/internal/pager"
	"github.com/oda/rowstore/pkg/metrics"
)

type options struct {
	logger       *zap.Logger
	metrics      *metrics.Metrics
	maxPages     uint32
	syncOnClose  bool
	sortedInsert bool
}

func defaultOptions() options {
	return options{
		logger:      zap.NewNop(),
		maxPages:    pager.DefaultMaxPages,
		syncOnClose: true,
	}
}

// Option configures a Table.
type Option func(*options)

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records pager and table activity into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMaxPages sets how many pages the table may address.
func WithMaxPages(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPages = n
		}
	}
}

// WithSyncOnClose controls whether Close fsyncs after flushing. Default true.
func WithSyncOnClose(sync bool) Option {
	return func(o *options) {
		o.syncOnClose = sync
	}
}

// WithSortedInsert places each row at its key position instead of
// appending it, and rejects duplicate ids with ErrDuplicateKey.
// Off by default: rows are kept in insertion order.
func WithSortedInsert(sorted bool) Option {
	return func(o *options) {
		o.sortedInsert = sorted
	}
}
