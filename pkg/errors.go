package pkg

import (
	"errors"
	"fmt"
)

// Outcome and configuration errors
var (
	ErrNotFound      = errors.New("key not found")
	ErrKeyExists     = errors.New("key already exists")
	ErrInvalidConfig = errors.New("invalid connection config")
)

// Kind sentinels, matched through errors.Is on the typed errors below
var (
	ErrConnectTimeout = errors.New("connect timeout")
	ErrAuthFailed     = errors.New("authentication failed")
	ErrUnreachable    = errors.New("store unreachable")

	ErrStoreTimeout = errors.New("store operation timed out")
	ErrUnavailable  = errors.New("store unavailable")
	ErrProtocol     = errors.New("store protocol error")

	ErrMalformed   = errors.New("malformed value")
	ErrUnsupported = errors.New("unsupported value")
)

// ConnectErrorKind classifies a failed connect
type ConnectErrorKind int

const (
	ConnectTimeout ConnectErrorKind = iota + 1
	AuthFailed
	Unreachable
)

func (k ConnectErrorKind) String() string {
	switch k {
	case ConnectTimeout:
		return "timeout"
	case AuthFailed:
		return "auth_failed"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

func (k ConnectErrorKind) sentinel() error {
	switch k {
	case ConnectTimeout:
		return ErrConnectTimeout
	case AuthFailed:
		return ErrAuthFailed
	case Unreachable:
		return ErrUnreachable
	default:
		return nil
	}
}

// ConnectError is returned when a session cannot be established
type ConnectError struct {
	Kind ConnectErrorKind
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connect %s: %s", e.Addr, e.Kind)
	}
	return fmt.Sprintf("connect %s: %s: %v", e.Addr, e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// StoreErrorKind classifies a failed store operation
type StoreErrorKind int

const (
	StoreTimeout StoreErrorKind = iota + 1
	Unavailable
	ProtocolError
)

func (k StoreErrorKind) String() string {
	switch k {
	case StoreTimeout:
		return "timeout"
	case Unavailable:
		return "unavailable"
	case ProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}

func (k StoreErrorKind) sentinel() error {
	switch k {
	case StoreTimeout:
		return ErrStoreTimeout
	case Unavailable:
		return ErrUnavailable
	case ProtocolError:
		return ErrProtocol
	default:
		return nil
	}
}

// StoreError is returned by store operations on an established session
type StoreError struct {
	Op   string
	Key  string
	Kind StoreErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	msg := e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// CodecErrorKind classifies a codec failure
type CodecErrorKind int

const (
	Malformed CodecErrorKind = iota + 1
	Unsupported
)

func (k CodecErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// CodecError is returned by value codecs
type CodecError struct {
	Kind   CodecErrorKind
	Codec  string
	Reason string
}

func (e *CodecError) Error() string {
	if e.Codec == "" {
		return fmt.Sprintf("%s value: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s value: %s", e.Codec, e.Kind, e.Reason)
}

func (e *CodecError) Is(target error) bool {
	switch e.Kind {
	case Malformed:
		return target == ErrMalformed
	case Unsupported:
		return target == ErrUnsupported
	}
	return false
}
