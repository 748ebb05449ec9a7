package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"redis_browser/pkg"
)

// Reply fragments that mean the credentials were rejected
var authReplies = []string{
	"WRONGPASS",
	"NOAUTH",
	"invalid password",
	"invalid username-password pair",
	"called without any password configured",
	"Client sent AUTH, but no password is set",
}

func isAuthError(err error) bool {
	var rerr redis.Error
	if !errors.As(err, &rerr) {
		return false
	}
	msg := rerr.Error()
	for _, frag := range authReplies {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "pool timeout")
}

// classifyConnect maps a failed handshake or probe to a ConnectError
func classifyConnect(addr string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("connect %s cancelled: %w", addr, err)
	case isAuthError(err):
		return &pkg.ConnectError{Kind: pkg.AuthFailed, Addr: addr, Err: err}
	case isTimeout(err):
		return &pkg.ConnectError{Kind: pkg.ConnectTimeout, Addr: addr, Err: err}
	default:
		return &pkg.ConnectError{Kind: pkg.Unreachable, Addr: addr, Err: err}
	}
}

// classifyOp maps a failed command to a StoreError
func classifyOp(op, key string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s cancelled: %w", op, key, err)
	}

	kind := pkg.Unavailable
	var rerr redis.Error
	switch {
	case isTimeout(err):
		kind = pkg.StoreTimeout
	case errors.Is(err, redis.ErrClosed):
		kind = pkg.Unavailable
	case errors.As(err, &rerr):
		kind = pkg.ProtocolError
	}
	return &pkg.StoreError{Op: op, Key: key, Kind: kind, Err: err}
}
