package pkg

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Core types shared by the store, search and session layers

// Connection defaults for a local store
const (
	DefaultHost    = "127.0.0.1"
	DefaultPort    = 6379
	DefaultTimeout = 5 * time.Second
)

// ConnectionConfig holds everything needed to open a session against a store
type ConnectionConfig struct {
	Host     string        `json:"host" yaml:"host"`
	Port     int           `json:"port" yaml:"port"`
	Username string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password string        `json:"-" yaml:"password,omitempty"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConnectionConfig returns a config pointing at a local store
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Host:    DefaultHost,
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
	}
}

// Validate checks host, port range and timeout
func (c ConnectionConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidConfig)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range 1-65535", ErrInvalidConfig, c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// Addr returns host:port
func (c ConnectionConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ConnectionState is the lifecycle state of a store session
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Failed
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "invalid"
	}
}

// KeyEntry is a key name as seen by the last listing. It may be stale.
type KeyEntry struct {
	Name    string `json:"name"`
	Present bool   `json:"present"`
}

// Decoder turns raw store bytes into a structured value
type Decoder interface {
	Decode(b []byte) (any, error)
}

// ValueRecord is a value fetched from the store. Raw is authoritative; the
// decoded form is computed on first use and cached with its error.
type ValueRecord struct {
	Key string
	Raw []byte

	decoder  Decoder
	once     sync.Once
	decoded  any
	codecErr error
}

// NewValueRecord wraps raw bytes for key. The decoder is not run until Decoded is called.
func NewValueRecord(key string, raw []byte, decoder Decoder) *ValueRecord {
	return &ValueRecord{
		Key:     key,
		Raw:     raw,
		decoder: decoder,
	}
}

// Decoded returns the decoded value or the codec error that prevented it
func (r *ValueRecord) Decoded() (any, error) {
	r.once.Do(func() {
		if r.decoder == nil {
			r.codecErr = &CodecError{Kind: Malformed, Reason: "no decoder configured"}
			return
		}
		r.decoded, r.codecErr = r.decoder.Decode(r.Raw)
	})
	return r.decoded, r.codecErr
}

// CodecErr returns the decode error, if any
func (r *ValueRecord) CodecErr() error {
	_, err := r.Decoded()
	return err
}

// EditSession is a pending edit bound to one key
type EditSession struct {
	Key         string       `json:"key"`
	Original    *ValueRecord `json:"-"`
	PendingText string       `json:"pending_text"`
	Dirty       bool         `json:"dirty"`

	seed string
}

// NewEditSession opens an edit of original seeded with text
func NewEditSession(original *ValueRecord, text string) *EditSession {
	return &EditSession{
		Key:         original.Key,
		Original:    original,
		PendingText: text,
		seed:        text,
	}
}

// SetText replaces the pending text and recomputes Dirty
func (e *EditSession) SetText(text string) {
	e.PendingText = text
	e.Dirty = text != e.seed
}

// DeleteOutcome reports what a delete actually did
type DeleteOutcome int

const (
	Deleted DeleteOutcome = iota + 1
	AlreadyAbsent
)

func (o DeleteOutcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case AlreadyAbsent:
		return "already_absent"
	default:
		return "unknown"
	}
}

// Theme is the presentation theme preference
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark"; anything else falls back to dark
func ParseTheme(s string) Theme {
	if strings.EqualFold(strings.TrimSpace(s), string(ThemeLight)) {
		return ThemeLight
	}
	return ThemeDark
}

// Toggle returns the other theme
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}
