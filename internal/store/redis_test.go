package store

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redis_browser/pkg"
)

func configFor(t *testing.T, addr string) pkg.ConnectionConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return pkg.ConnectionConfig{Host: host, Port: port, Timeout: 2 * time.Second}
}

func startSession(t *testing.T) (*miniredis.Miniredis, *Session) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := Connect(context.Background(), configFor(t, mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// silentListener accepts connections and never answers
func silentListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var conns []net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, c)
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return ln.Addr().String()
}

// stallingListener speaks enough RESP to pass the handshake and the
// connect ping, then never answers a command named stall
func stallingListener(t *testing.T, stall string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var conns []net.Conn
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
			wg.Add(1)
			go func() {
				defer wg.Done()
				serveUntil(c, stall)
			}()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		for _, c := range conns {
			_ = c.Close()
		}
		mu.Unlock()
		wg.Wait()
	})
	return ln.Addr().String()
}

func serveUntil(c net.Conn, stall string) {
	r := bufio.NewReader(c)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		var reply string
		switch strings.ToUpper(args[0]) {
		case "HELLO":
			reply = "-ERR unknown command 'HELLO'\r\n"
		case "PING":
			reply = "+PONG\r\n"
		case strings.ToUpper(stall):
			// hold the reply until the connection is closed
			_, _ = io.Copy(io.Discard, r)
			return
		default:
			reply = "+OK\r\n"
		}
		if _, err := io.WriteString(c, reply); err != nil {
			return
		}
	}
}

func readCommand(r *bufio.Reader) ([]string, error) {
	header, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "*")))
	if err != nil || n < 1 {
		return nil, fmt.Errorf("bad command header %q", header)
	}
	args := make([]string, n)
	for i := range args {
		if _, err := r.ReadString('\n'); err != nil {
			return nil, err
		}
		arg, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		args[i] = strings.TrimSuffix(arg, "\r\n")
	}
	return args, nil
}

func TestSession_StalledReplyIsTimeout(t *testing.T) {
	cfg := configFor(t, stallingListener(t, "GET"))
	cfg.Timeout = 300 * time.Millisecond

	s, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	start := time.Now()
	_, err = s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, pkg.ErrStoreTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, pkg.Connected, s.State())
}

func TestConnect_Scenario(t *testing.T) {
	_, s := startSession(t)
	ctx := context.Background()

	assert.Equal(t, pkg.Connected, s.State())

	require.NoError(t, s.Set(ctx, "greeting", []byte("hello")))

	got, err := s.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	outcome, err := s.Delete(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, pkg.Deleted, outcome)

	_, err = s.Get(ctx, "greeting")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestConnect_WrongPasswordIsAuthFailed(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")

	cfg := configFor(t, mr.Addr())
	cfg.Password = "wrong"
	_, err := Connect(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkg.ErrAuthFailed)
	assert.NotErrorIs(t, err, pkg.ErrUnreachable)

	cfg.Password = ""
	_, err = Connect(context.Background(), cfg)
	assert.ErrorIs(t, err, pkg.ErrAuthFailed)

	cfg.Password = "s3cret"
	s, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestConnect_WrongUserIsAuthFailed(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireUserAuth("alice", "pw")

	cfg := configFor(t, mr.Addr())
	cfg.Username = "alice"
	cfg.Password = "nope"
	_, err := Connect(context.Background(), cfg)
	assert.ErrorIs(t, err, pkg.ErrAuthFailed)
}

func TestConnect_SilentHostIsTimeout(t *testing.T) {
	cfg := configFor(t, silentListener(t))
	cfg.Timeout = 200 * time.Millisecond

	start := time.Now()
	_, err := Connect(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkg.ErrConnectTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestConnect_RefusedIsUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Connect(context.Background(), configFor(t, addr))
	assert.ErrorIs(t, err, pkg.ErrUnreachable)
}

func TestConnect_InvalidConfig(t *testing.T) {
	_, err := Connect(context.Background(), pkg.ConnectionConfig{Host: "localhost", Port: 0, Timeout: time.Second})
	assert.ErrorIs(t, err, pkg.ErrInvalidConfig)
}

func TestConnect_Cancelled(t *testing.T) {
	cfg := configFor(t, silentListener(t))
	cfg.Timeout = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := Connect(ctx, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProbe(t *testing.T) {
	mr := miniredis.RunT(t)
	assert.NoError(t, Probe(context.Background(), configFor(t, mr.Addr())))
}

func TestSession_Create(t *testing.T) {
	_, s := startSession(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "k", []byte("v1")))
	err := s.Create(ctx, "k", []byte("v2"))
	assert.ErrorIs(t, err, pkg.ErrKeyExists)

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)
}

func TestSession_DeleteAbsent(t *testing.T) {
	_, s := startSession(t)

	outcome, err := s.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
	assert.Equal(t, pkg.AlreadyAbsent, outcome)
	assert.Equal(t, pkg.Connected, s.State())
}

func TestSession_ScanCoversKeyspaceOnce(t *testing.T) {
	mr, s := startSession(t)
	ctx := context.Background()

	const n, batch = 253, 10
	for i := 0; i < n; i++ {
		mr.Set(fmt.Sprintf("key:%03d", i), "v")
	}

	seen := make(map[string]int)
	batches := 0
	cursor := Cursor(0)
	for {
		page, err := s.ScanKeys(ctx, "*", cursor, batch)
		require.NoError(t, err)
		batches++
		for _, k := range page.Keys {
			seen[k]++
		}
		if page.Done {
			break
		}
		cursor = page.Next
	}

	assert.Len(t, seen, n)
	for k, c := range seen {
		assert.Equal(t, 1, c, "key %s seen more than once", k)
	}
	assert.LessOrEqual(t, batches, (n+batch-1)/batch)
}

func TestSession_ScanPattern(t *testing.T) {
	mr, s := startSession(t)
	mr.Set("user:1", "a")
	mr.Set("order:1", "b")

	page, err := s.ScanKeys(context.Background(), "user:*", 0, 0)
	require.NoError(t, err)
	assert.True(t, page.Done)
	assert.Equal(t, []string{"user:1"}, page.Keys)
}

func TestSession_ServerErrorIsProtocolError(t *testing.T) {
	mr, s := startSession(t)

	mr.SetError("LOADING Redis is loading the dataset in memory")
	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, pkg.ErrProtocol)

	mr.SetError("")
	require.NoError(t, s.Ping(context.Background()))
}

func TestSession_WrongTypeIsProtocolError(t *testing.T) {
	mr, s := startSession(t)
	_, err := mr.Lpush("list", "x")
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "list")
	assert.ErrorIs(t, err, pkg.ErrProtocol)
}

func TestSession_ServerGoneIsUnavailable(t *testing.T) {
	mr, s := startSession(t)
	mr.Close()

	err := s.Set(context.Background(), "k", []byte("v"))
	require.Error(t, err)
	var se *pkg.StoreError
	require.ErrorAs(t, err, &se)
	assert.NotEqual(t, pkg.ProtocolError, se.Kind)
}

func TestSession_FailedUntilStoreAnswers(t *testing.T) {
	mr, s := startSession(t)
	ctx := context.Background()
	mr.Close()

	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, pkg.ErrUnavailable)
	assert.Equal(t, pkg.Failed, s.State())
	assert.Error(t, s.LastError())

	require.NoError(t, mr.Restart())
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	assert.Equal(t, pkg.Connected, s.State())
}

func TestSession_ClosedIsUnavailable(t *testing.T) {
	_, s := startSession(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, pkg.ErrUnavailable)
	assert.Equal(t, pkg.Disconnected, s.State())
}

func TestDialer_Connect(t *testing.T) {
	mr := miniredis.RunT(t)
	var c Connector = NewDialer(testLogger())

	client, err := c.Connect(context.Background(), configFor(t, mr.Addr()))
	require.NoError(t, err)
	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Close())
}
