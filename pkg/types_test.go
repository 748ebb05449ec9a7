package pkg

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConnectionConfig)
		wantErr bool
	}{
		{"defaults", func(c *ConnectionConfig) {}, false},
		{"empty host", func(c *ConnectionConfig) { c.Host = "  " }, true},
		{"port zero", func(c *ConnectionConfig) { c.Port = 0 }, true},
		{"port too high", func(c *ConnectionConfig) { c.Port = 65536 }, true},
		{"port max", func(c *ConnectionConfig) { c.Port = 65535 }, false},
		{"zero timeout", func(c *ConnectionConfig) { c.Timeout = 0 }, true},
		{"negative timeout", func(c *ConnectionConfig) { c.Timeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConnectionConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConnectionConfig_Addr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:6379", DefaultConnectionConfig().Addr())
	assert.Equal(t, "[::1]:7000", ConnectionConfig{Host: "::1", Port: 7000}.Addr())
}

func TestConnectionState_String(t *testing.T) {
	tests := []struct {
		state    ConnectionState
		expected string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{Connected, "connected"},
		{Failed, "failed"},
		{ConnectionState(42), "invalid"},
	}

	for _, test := range tests {
		if got := test.state.String(); got != test.expected {
			t.Errorf("ConnectionState(%d).String() = %q, want %q", test.state, got, test.expected)
		}
	}
}

type countingDecoder struct {
	calls int
	value any
	err   error
}

func (d *countingDecoder) Decode([]byte) (any, error) {
	d.calls++
	return d.value, d.err
}

func TestValueRecord_DecodesOnce(t *testing.T) {
	dec := &countingDecoder{value: "hello"}
	rec := NewValueRecord("greeting", []byte("raw"), dec)
	assert.Equal(t, 0, dec.calls)

	v, err := rec.Decoded()
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	_, _ = rec.Decoded()
	assert.NoError(t, rec.CodecErr())
	assert.Equal(t, 1, dec.calls)
}

func TestValueRecord_CodecErrorKeepsRaw(t *testing.T) {
	dec := &countingDecoder{err: &CodecError{Kind: Malformed, Reason: "bad"}}
	rec := NewValueRecord("k", []byte{0x80, 0x04}, dec)

	_, err := rec.Decoded()
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, []byte{0x80, 0x04}, rec.Raw)
}

func TestEditSession_Dirty(t *testing.T) {
	e := NewEditSession(NewValueRecord("k", nil, nil), "seed")
	assert.False(t, e.Dirty)

	e.SetText("changed")
	assert.True(t, e.Dirty)

	e.SetText("seed")
	assert.False(t, e.Dirty)
}

func TestTypedErrors_Is(t *testing.T) {
	connErr := fmt.Errorf("failed to connect: %w", &ConnectError{Kind: AuthFailed, Addr: "h:1"})
	assert.ErrorIs(t, connErr, ErrAuthFailed)
	assert.NotErrorIs(t, connErr, ErrUnreachable)

	storeErr := &StoreError{Op: "get", Key: "k", Kind: StoreTimeout, Err: errors.New("i/o timeout")}
	assert.ErrorIs(t, storeErr, ErrStoreTimeout)
	assert.Equal(t, "get k: timeout: i/o timeout", storeErr.Error())

	codecErr := &CodecError{Kind: Unsupported, Codec: "tagged-json", Reason: "chan"}
	assert.ErrorIs(t, codecErr, ErrUnsupported)
	assert.NotErrorIs(t, codecErr, ErrMalformed)
}

func TestTheme(t *testing.T) {
	assert.Equal(t, ThemeLight, ParseTheme("Light"))
	assert.Equal(t, ThemeDark, ParseTheme("whatever"))
	assert.Equal(t, ThemeLight, ThemeDark.Toggle())
	assert.Equal(t, ThemeDark, ThemeLight.Toggle())
}
