package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"redis_browser/pkg"
)

// DefaultScanCount is the SCAN COUNT hint used when callers pass zero
const DefaultScanCount = 100

// Session is one authenticated connection to the store. It owns its
// go-redis client exclusively and serialises every command sent through it.
type Session struct {
	cfg    pkg.ConnectionConfig
	client *redis.Client
	log    zerolog.Logger

	opMu sync.Mutex

	stateMu sync.RWMutex
	state   pkg.ConnectionState
	lastErr error
}

// Option configures Connect
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.log = logger
	}
}

func newOptions(cfg pkg.ConnectionConfig) *redis.Options {
	return &redis.Options{
		Addr:                  cfg.Addr(),
		Username:              cfg.Username,
		Password:              cfg.Password,
		DialTimeout:           cfg.Timeout,
		ReadTimeout:           cfg.Timeout,
		WriteTimeout:          cfg.Timeout,
		PoolTimeout:           cfg.Timeout,
		ContextTimeoutEnabled: true,
		PoolSize:              1,
		MaxIdleConns:          1,
		MaxRetries:            -1,
		DisableIdentity:       true,
	}
}

// Connect validates cfg, dials the store and probes it with PING. The session
// is returned only once the probe succeeds.
func Connect(ctx context.Context, cfg pkg.ConnectionConfig, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:   cfg,
		log:   zerolog.Nop(),
		state: pkg.Connecting,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "store").Str("addr", cfg.Addr()).Logger()

	s.client = redis.NewClient(newOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	if err := s.probe(ctx, pingCtx); err != nil {
		_ = s.client.Close()
		cerr := classifyConnect(cfg.Addr(), err)
		s.log.Warn().Err(cerr).Dur("elapsed", time.Since(start)).Msg("Connect failed")
		return nil, cerr
	}

	s.setState(pkg.Connected, nil)
	s.log.Info().Str("username", cfg.Username).Dur("elapsed", time.Since(start)).Msg("Connected to store")
	return s, nil
}

// probe pings under pingCtx. go-redis only honours deadlines on a blocked
// read, so a cancelled ctx closes the client to unblock it.
func (s *Session) probe(ctx, pingCtx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.client.Ping(pingCtx).Err()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		_ = s.client.Close()
		<-errc
		return ctx.Err()
	}
}

// Probe opens a session, pings it and closes it again
func Probe(ctx context.Context, cfg pkg.ConnectionConfig, opts ...Option) error {
	s, err := Connect(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	return s.Close()
}

// Config returns the configuration the session was opened with
func (s *Session) Config() pkg.ConnectionConfig {
	return s.cfg
}

// State returns the connection state
func (s *Session) State() pkg.ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// LastError returns the last connection-level failure
func (s *Session) LastError() error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastErr
}

func (s *Session) setState(state pkg.ConnectionState, err error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
	if err != nil {
		s.lastErr = err
	}
}

// do runs fn under the session lock with the session timeout applied
func (s *Session) do(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	if s.State() == pkg.Disconnected {
		return &pkg.StoreError{Op: op, Key: key, Kind: pkg.Unavailable, Err: redis.ErrClosed}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	err := fn(opCtx)
	event := s.log.Debug().Str("op", op).Str("key", key).Dur("elapsed", time.Since(start))
	if err == nil || errors.Is(err, redis.Nil) {
		if s.State() == pkg.Failed {
			s.setState(pkg.Connected, nil)
			s.log.Info().Str("op", op).Msg("Store reachable again")
		}
		event.Msg("Store op")
		return err
	}

	serr := classifyOp(op, key, err)
	var se *pkg.StoreError
	if errors.As(serr, &se) && se.Kind == pkg.Unavailable && s.State() == pkg.Connected {
		s.setState(pkg.Failed, serr)
	}
	event.Err(serr).Msg("Store op failed")
	return serr
}

// Ping probes the connection
func (s *Session) Ping(ctx context.Context) error {
	return s.do(ctx, "ping", "", func(ctx context.Context) error {
		return s.client.Ping(ctx).Err()
	})
}

// Get returns the raw value stored at key or pkg.ErrNotFound
func (s *Session) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.do(ctx, "get", key, func(ctx context.Context) error {
		var err error
		value, err = s.client.Get(ctx, key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", pkg.ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set writes value at key without expiry, replacing any previous value
func (s *Session) Set(ctx context.Context, key string, value []byte) error {
	return s.do(ctx, "set", key, func(ctx context.Context) error {
		return s.client.Set(ctx, key, value, 0).Err()
	})
}

// Create writes value at key only if the key does not exist yet
func (s *Session) Create(ctx context.Context, key string, value []byte) error {
	var created bool
	err := s.do(ctx, "create", key, func(ctx context.Context) error {
		var err error
		created, err = s.client.SetNX(ctx, key, value, 0).Result()
		return err
	})
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("%w: %s", pkg.ErrKeyExists, key)
	}
	return nil
}

// Delete removes key. A key that was already absent yields pkg.ErrNotFound.
func (s *Session) Delete(ctx context.Context, key string) (pkg.DeleteOutcome, error) {
	var count int64
	err := s.do(ctx, "delete", key, func(ctx context.Context) error {
		var err error
		count, err = s.client.Del(ctx, key).Result()
		return err
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return pkg.AlreadyAbsent, fmt.Errorf("%w: %s", pkg.ErrNotFound, key)
	}
	return pkg.Deleted, nil
}

// ScanKeys runs one SCAN step from cursor
func (s *Session) ScanKeys(ctx context.Context, pattern string, cursor Cursor, count int64) (ScanPage, error) {
	if pattern == "" {
		pattern = "*"
	}
	if count <= 0 {
		count = DefaultScanCount
	}

	var (
		keys []string
		next uint64
	)
	err := s.do(ctx, "scan", pattern, func(ctx context.Context) error {
		var err error
		keys, next, err = s.client.Scan(ctx, uint64(cursor), pattern, count).Result()
		return err
	})
	if err != nil {
		return ScanPage{}, err
	}
	return ScanPage{Keys: keys, Next: Cursor(next), Done: next == 0}, nil
}

// Close releases the connection. It is safe to call more than once.
func (s *Session) Close() error {
	s.stateMu.Lock()
	if s.state == pkg.Disconnected {
		s.stateMu.Unlock()
		return nil
	}
	s.state = pkg.Disconnected
	s.stateMu.Unlock()

	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("failed to close store session: %w", err)
	}
	s.log.Info().Msg("Store session closed")
	return nil
}
