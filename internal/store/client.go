// Package store owns the network session to a Redis-compatible store.
//
// Every call is bounded by the session timeout and every failure is translated
// into the typed errors of package pkg before it leaves this package.
package store

import (
	"context"

	"github.com/rs/zerolog"

	"redis_browser/pkg"
)

// Cursor is the opaque SCAN position. Zero starts a new iteration.
type Cursor uint64

// ScanPage is the result of one SCAN round trip
type ScanPage struct {
	Keys []string
	Next Cursor
	Done bool
}

// Client is the narrow capability set the rest of the application uses
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Create(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) (pkg.DeleteOutcome, error)
	ScanKeys(ctx context.Context, pattern string, cursor Cursor, count int64) (ScanPage, error)
	Ping(ctx context.Context) error
	// State reports Failed after the store stopped answering and
	// Connected again once a command succeeds
	State() pkg.ConnectionState
	Close() error
}

// Connector opens sessions
type Connector interface {
	Connect(ctx context.Context, cfg pkg.ConnectionConfig) (Client, error)
}

// Dialer is the go-redis backed Connector
type Dialer struct {
	Logger zerolog.Logger
}

// NewDialer creates a Dialer logging through logger
func NewDialer(logger zerolog.Logger) *Dialer {
	return &Dialer{Logger: logger}
}

func (d *Dialer) Connect(ctx context.Context, cfg pkg.ConnectionConfig) (Client, error) {
	s, err := Connect(ctx, cfg, WithLogger(d.Logger))
	if err != nil {
		return nil, err
	}
	return s, nil
}

var (
	_ Client    = (*Session)(nil)
	_ Connector = (*Dialer)(nil)
)
