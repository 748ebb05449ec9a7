package search

import (
	"context"
	"errors"
	"net"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redis_browser/internal/store"
	"redis_browser/pkg"
)

// pagedScanner serves a fixed key list in pages of size per call
type pagedScanner struct {
	keys    []string
	size    int
	calls   int
	cursors []store.Cursor
	failAt  int
}

func (p *pagedScanner) ScanKeys(_ context.Context, _ string, cursor store.Cursor, _ int64) (store.ScanPage, error) {
	p.calls++
	p.cursors = append(p.cursors, cursor)
	if p.failAt > 0 && p.calls == p.failAt {
		return store.ScanPage{}, &pkg.StoreError{Op: "scan", Kind: pkg.Unavailable, Err: errors.New("connection reset")}
	}

	start := int(cursor)
	end := start + p.size
	if end >= len(p.keys) {
		return store.ScanPage{Keys: p.keys[start:], Done: true}, nil
	}
	return store.ScanPage{Keys: p.keys[start:end], Next: store.Cursor(end)}, nil
}

func names(entries []pkg.KeyEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	sort.Strings(out)
	return out
}

func TestPattern(t *testing.T) {
	tests := map[string]string{
		"":       "*",
		"user":   "*user*",
		"a*b":    `*a\*b*`,
		"q?[x]":  `*q\?\[x\]*`,
		`back\s`: `*back\\s*`,
	}
	for in, want := range tests {
		assert.Equal(t, want, Pattern(in), "Pattern(%q)", in)
	}
}

func TestSearch_SubstringAcrossBatchBoundaries(t *testing.T) {
	keys := []string{"user:1", "order:1", "user:2"}

	for size := 1; size <= 4; size++ {
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			sc := &pagedScanner{keys: keys, size: size}
			got, truncated, err := New().Search(context.Background(), sc, "user").Collect(context.Background(), 0)
			require.NoError(t, err)
			assert.False(t, truncated)
			assert.Equal(t, []string{"user:1", "user:2"}, names(got))
		})
	}
}

func TestSearch_IsLazyAndIncremental(t *testing.T) {
	sc := &pagedScanner{keys: []string{"a1", "a2", "a3", "a4"}, size: 2}
	res := New().Search(context.Background(), sc, "a")
	assert.Equal(t, 0, sc.calls)

	require.True(t, res.Next(context.Background()))
	assert.Equal(t, 1, sc.calls)
	assert.Equal(t, []string{"a1", "a2"}, names(res.Batch()))
}

func TestSearch_SkipsDuplicates(t *testing.T) {
	sc := &pagedScanner{keys: []string{"k1", "k2", "k1", "k3", "k2"}, size: 2}
	got, _, err := New().Search(context.Background(), sc, "").Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2", "k3"}, names(got))
}

func TestSearch_ForgetsSeenKeysWhenDone(t *testing.T) {
	sc := &pagedScanner{keys: []string{"k1", "k2", "k1", "k3"}, size: 2}
	res := New().Search(context.Background(), sc, "")

	require.True(t, res.Next(context.Background()))
	assert.Len(t, res.seen, 2)
	require.True(t, res.Next(context.Background()))
	assert.Nil(t, res.seen)
	assert.False(t, res.Next(context.Background()))

	failing := &pagedScanner{keys: []string{"a", "b"}, size: 1, failAt: 2}
	res = New().Search(context.Background(), failing, "")
	require.True(t, res.Next(context.Background()))
	assert.False(t, res.Next(context.Background()))
	assert.Nil(t, res.seen)
}

func TestSearch_SkipsEmptyPages(t *testing.T) {
	sc := &pagedScanner{keys: []string{"x", "y", "z", "match"}, size: 1}
	res := New().Search(context.Background(), sc, "match")

	require.True(t, res.Next(context.Background()))
	assert.Equal(t, []string{"match"}, names(res.Batch()))
	assert.False(t, res.Next(context.Background()))
	assert.NoError(t, res.Err())
	assert.Equal(t, 4, res.Pages())
}

func TestSearch_FailureIsTerminal(t *testing.T) {
	sc := &pagedScanner{keys: []string{"a", "b", "c", "d"}, size: 1, failAt: 2}
	res := New().Search(context.Background(), sc, "")

	require.True(t, res.Next(context.Background()))
	assert.False(t, res.Next(context.Background()))
	assert.ErrorIs(t, res.Err(), pkg.ErrUnavailable)

	assert.False(t, res.Next(context.Background()))
	assert.Equal(t, 2, sc.calls, "stale cursor must not be retried")
}

func TestSearch_Cancellation(t *testing.T) {
	sc := &pagedScanner{keys: []string{"a", "b", "c"}, size: 1}
	ctx, cancel := context.WithCancel(context.Background())
	res := New().Search(ctx, sc, "")

	require.True(t, res.Next(ctx))
	cancel()
	assert.False(t, res.Next(ctx))
	assert.ErrorIs(t, res.Err(), context.Canceled)
	assert.Equal(t, 1, sc.calls)
}

func TestSearch_RestartsFromZero(t *testing.T) {
	sc := &pagedScanner{keys: []string{"a", "b"}, size: 1}
	svc := New()

	first := svc.Search(context.Background(), sc, "")
	require.True(t, first.Next(context.Background()))

	second := svc.Search(context.Background(), sc, "")
	require.True(t, second.Next(context.Background()))
	assert.Equal(t, []store.Cursor{0, 0}, sc.cursors)
}

func TestResults_All(t *testing.T) {
	sc := &pagedScanner{keys: []string{"a", "b", "c"}, size: 2}

	var got []string
	for entry, err := range New().Search(context.Background(), sc, "").All(context.Background()) {
		require.NoError(t, err)
		got = append(got, entry.Name)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, sc.calls)
}

func TestResults_AllYieldsError(t *testing.T) {
	sc := &pagedScanner{keys: []string{"a", "b"}, size: 1, failAt: 2}

	var errs []error
	for _, err := range New().Search(context.Background(), sc, "").All(context.Background()) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], pkg.ErrUnavailable)
}

func TestResults_CollectLimit(t *testing.T) {
	sc := &pagedScanner{keys: []string{"a", "b", "c", "d"}, size: 3}
	got, truncated, err := New().Search(context.Background(), sc, "").Collect(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Len(t, got, 2)
}

func TestSearch_AgainstStore(t *testing.T) {
	mr := miniredis.RunT(t)
	for _, k := range []string{"user:1", "user:2", "order:1", "star*user"} {
		require.NoError(t, mr.Set(k, "v"))
	}

	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	s, err := store.Connect(context.Background(), pkg.ConnectionConfig{Host: host, Port: p, Timeout: time.Second})
	require.NoError(t, err)
	defer s.Close()

	svc := New(WithBatchSize(1))
	got, _, err := svc.Search(context.Background(), s, "user:").Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"user:1", "user:2"}, names(got))

	got, _, err = svc.Search(context.Background(), s, "").Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}
