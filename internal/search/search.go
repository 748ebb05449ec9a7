// Package search enumerates keys incrementally with SCAN cursors and filters
// them by substring on the client side.
package search

import (
	"context"
	"iter"
	"strings"

	"github.com/rs/zerolog"

	"redis_browser/internal/store"
	"redis_browser/pkg"
)

// DefaultBatchSize is the SCAN COUNT hint per round trip
const DefaultBatchSize = 100

// Scanner is the part of the store the search needs
type Scanner interface {
	ScanKeys(ctx context.Context, pattern string, cursor store.Cursor, count int64) (store.ScanPage, error)
}

// Service builds key searches
type Service struct {
	batchSize int64
	log       zerolog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithBatchSize sets the SCAN COUNT hint
func WithBatchSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets the service logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.log = logger
	}
}

// New creates a search service
func New(opts ...Option) *Service {
	s := &Service{
		batchSize: DefaultBatchSize,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "search").Logger()
	return s
}

// BatchSize returns the SCAN COUNT hint
func (s *Service) BatchSize() int64 {
	return s.batchSize
}

// Search returns a lazy result set of keys containing substring. Nothing is
// sent to the store until Next is called. Each call starts a fresh cursor.
func (s *Service) Search(ctx context.Context, scanner Scanner, substring string) *Results {
	return &Results{
		scanner:   scanner,
		substring: substring,
		pattern:   Pattern(substring),
		count:     s.batchSize,
		seen:      make(map[string]struct{}),
		log:       s.log,
	}
}

// Pattern turns substring into a SCAN MATCH glob
func Pattern(substring string) string {
	if substring == "" {
		return "*"
	}
	var b strings.Builder
	b.Grow(len(substring) + 2)
	b.WriteByte('*')
	for _, r := range substring {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('*')
	return b.String()
}

// Results walks the keyspace one SCAN page at a time. SCAN may repeat keys,
// so every match is remembered until the walk ends: memory grows with the
// number of distinct matches and is released once Next returns false. Use
// Collect with a limit to bound it.
type Results struct {
	scanner   Scanner
	substring string
	pattern   string
	count     int64
	log       zerolog.Logger

	cursor store.Cursor
	done   bool
	err    error
	batch  []pkg.KeyEntry
	seen   map[string]struct{}
	pages  int
}

// Next fetches the next non-empty batch of matches. It returns false when the
// keyspace is exhausted, ctx is done or the store failed; check Err.
// After a failure the cursor is dropped and never retried.
func (r *Results) Next(ctx context.Context) bool {
	r.batch = nil
	for !r.done {
		if err := ctx.Err(); err != nil {
			r.fail(err)
			return false
		}

		page, err := r.scanner.ScanKeys(ctx, r.pattern, r.cursor, r.count)
		if err != nil {
			r.fail(err)
			return false
		}
		r.pages++
		r.cursor = page.Next
		r.done = page.Done

		for _, name := range page.Keys {
			if !strings.Contains(name, r.substring) {
				continue
			}
			if _, dup := r.seen[name]; dup {
				continue
			}
			r.seen[name] = struct{}{}
			r.batch = append(r.batch, pkg.KeyEntry{Name: name, Present: true})
		}
		if r.done {
			r.seen = nil
		}
		if len(r.batch) > 0 {
			return true
		}
	}
	return false
}

func (r *Results) fail(err error) {
	r.err = err
	r.done = true
	r.cursor = 0
	r.seen = nil
	r.log.Debug().Err(err).Str("substring", r.substring).Int("pages", r.pages).Msg("Search stopped")
}

// Batch returns the entries fetched by the last successful Next
func (r *Results) Batch() []pkg.KeyEntry {
	return r.batch
}

// Err returns the error that stopped the search, if any
func (r *Results) Err() error {
	return r.err
}

// Pages returns how many SCAN round trips have been made
func (r *Results) Pages() int {
	return r.pages
}

// All yields matches one at a time. Stopping the range loop abandons the
// cursor. A failure is yielded once as the final element.
func (r *Results) All(ctx context.Context) iter.Seq2[pkg.KeyEntry, error] {
	return func(yield func(pkg.KeyEntry, error) bool) {
		for r.Next(ctx) {
			for _, entry := range r.batch {
				if !yield(entry, nil) {
					return
				}
			}
		}
		if r.err != nil {
			yield(pkg.KeyEntry{}, r.err)
		}
	}
}

// Collect gathers up to limit matches; limit <= 0 means no limit. The
// second return reports whether the limit cut the search short.
func (r *Results) Collect(ctx context.Context, limit int) ([]pkg.KeyEntry, bool, error) {
	var out []pkg.KeyEntry
	for r.Next(ctx) {
		for _, entry := range r.batch {
			if limit > 0 && len(out) == limit {
				return out, true, nil
			}
			out = append(out, entry)
		}
	}
	return out, false, r.err
}
