// Package session holds the state machine that sits between the presentation
// layer and the store: connect, browse, edit, commit, delete.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"redis_browser/internal/codec"
	"redis_browser/internal/search"
	"redis_browser/internal/store"
	"redis_browser/pkg"
)

// DefaultListLimit caps how many keys a listing keeps
const DefaultListLimit = 1000

// Controller drives one browser session. All methods are safe for concurrent
// use; mutating operations run one at a time.
type Controller struct {
	connector store.Connector
	codec     codec.Codec
	raw       codec.Codec
	search    *search.Service
	listLimit int
	log       zerolog.Logger
	observer  func(from, to State)

	// opMu serialises mutating operations
	opMu sync.Mutex

	mu        sync.RWMutex
	state     State
	cfg       pkg.ConnectionConfig
	client    store.Client
	listing   []pkg.KeyEntry
	stale     bool
	truncated bool
	selected  string
	record    *pkg.ValueRecord
	edit      *pkg.EditSession
	lastErr   error
	theme     pkg.Theme
	searchGen uint64
}

// Option configures a Controller
type Option func(*Controller)

// WithCodec sets the value codec
func WithCodec(c codec.Codec) Option {
	return func(ctl *Controller) {
		if c != nil {
			ctl.codec = c
		}
	}
}

// WithSearch sets the search service
func WithSearch(s *search.Service) Option {
	return func(ctl *Controller) {
		if s != nil {
			ctl.search = s
		}
	}
}

// WithListLimit caps the number of keys kept in a listing
func WithListLimit(n int) Option {
	return func(ctl *Controller) {
		ctl.listLimit = n
	}
}

// WithLogger sets the controller logger
func WithLogger(logger zerolog.Logger) Option {
	return func(ctl *Controller) {
		ctl.log = logger
	}
}

// WithTheme sets the initial theme
func WithTheme(theme pkg.Theme) Option {
	return func(ctl *Controller) {
		ctl.theme = theme
	}
}

// WithObserver registers fn to be called after every state change. fn runs
// without controller locks held.
func WithObserver(fn func(from, to State)) Option {
	return func(ctl *Controller) {
		ctl.observer = fn
	}
}

// New creates a controller in NoSession
func New(connector store.Connector, opts ...Option) *Controller {
	c := &Controller{
		connector: connector,
		codec:     codec.Default(),
		raw:       codec.NewText(),
		listLimit: DefaultListLimit,
		log:       zerolog.Nop(),
		state:     NoSession,
		theme:     pkg.ThemeDark,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.search == nil {
		c.search = search.New(search.WithLogger(c.log))
	}
	c.log = c.log.With().Str("component", "session").Logger()
	return c
}

func (c *Controller) notify(from, to State) {
	if from == to {
		return
	}
	c.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("State changed")
	if c.observer != nil {
		c.observer(from, to)
	}
}

// transition moves to state under mu and returns the previous one
func (c *Controller) transition(to State) State {
	from := c.state
	c.state = to
	return from
}

func (c *Controller) resetView() {
	c.listing = nil
	c.stale = false
	c.truncated = false
	c.selected = ""
	c.record = nil
	c.edit = nil
}

// liveClient returns the client when the state is one of allowed
func (c *Controller) liveClient(op string, allowed ...State) (store.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, s := range allowed {
		if c.state == s {
			return c.client, nil
		}
	}
	if c.state == EditingKey {
		return nil, fmt.Errorf("%s: %w", op, ErrEditInProgress)
	}
	return nil, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, c.state)
}

func (c *Controller) recordErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Connect opens a session with cfg. It is allowed from NoSession and
// Disconnected; on failure or cancellation the controller returns to
// NoSession with the error recorded.
func (c *Controller) Connect(ctx context.Context, cfg pkg.ConnectionConfig) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if !c.state.CanConnect() {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", ErrInvalidTransition, state)
	}
	from := c.transition(Connecting)
	c.resetView()
	c.cfg = cfg
	c.mu.Unlock()
	c.notify(from, Connecting)

	// Connecting always resolves, even if the connector panics
	defer func() {
		c.mu.Lock()
		stuck := c.state == Connecting
		if stuck {
			c.transition(NoSession)
		}
		c.mu.Unlock()
		if stuck {
			c.notify(Connecting, NoSession)
		}
	}()

	client, err := c.connector.Connect(ctx, cfg)

	c.mu.Lock()
	if err != nil {
		c.lastErr = err
		c.transition(NoSession)
		c.mu.Unlock()
		c.notify(Connecting, NoSession)
		c.log.Warn().Err(err).Str("addr", cfg.Addr()).Msg("Connect failed")
		return err
	}
	c.client = client
	c.lastErr = nil
	c.transition(Connected)
	c.mu.Unlock()
	c.notify(Connecting, Connected)

	c.log.Info().Str("addr", cfg.Addr()).Str("username", cfg.Username).Msg("Session connected")
	return nil
}

// Disconnect closes the session from any state. Pending edits are discarded.
func (c *Controller) Disconnect() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	client := c.client
	c.client = nil
	c.resetView()
	c.searchGen++
	from := c.transition(Disconnected)
	c.mu.Unlock()

	var err error
	if client != nil {
		err = client.Close()
	}
	c.notify(from, Disconnected)
	c.log.Info().Str("from", from.String()).Msg("Session disconnected")
	return err
}

// load fetches key and makes it the selection. Callers hold opMu.
func (c *Controller) load(ctx context.Context, client store.Client, key string) (*pkg.ValueRecord, error) {
	raw, err := client.Get(ctx, key)
	if errors.Is(err, pkg.ErrNotFound) {
		c.mu.Lock()
		c.selected = ""
		c.record = nil
		c.markAbsent(key)
		c.mu.Unlock()
		c.log.Info().Str("key", key).Msg("Selected key no longer exists")
		return nil, err
	}
	if err != nil {
		c.recordErr(err)
		return nil, err
	}

	rec := pkg.NewValueRecord(key, raw, c.codec)
	c.mu.Lock()
	c.selected = key
	c.record = rec
	c.mu.Unlock()
	return rec, nil
}

// markAbsent flags key as gone in the listing. Callers hold mu.
func (c *Controller) markAbsent(key string) {
	for i := range c.listing {
		if c.listing[i].Name == key {
			c.listing[i].Present = false
			c.stale = true
		}
	}
}

// SelectKey fetches key and makes it the current selection. A value the
// codec cannot decode is still selected; its record carries the codec error
// and the raw bytes. A missing key clears the selection and returns
// pkg.ErrNotFound.
func (c *Controller) SelectKey(ctx context.Context, key string) (*pkg.ValueRecord, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	client, err := c.liveClient("select", Connected, EditingKey)
	if err != nil {
		return nil, err
	}
	return c.load(ctx, client, key)
}

// RenderRecord returns the text shown for rec: the rendered decoded value,
// or the raw bytes when the value could not be decoded.
func RenderRecord(rec *pkg.ValueRecord) string {
	if rec == nil {
		return ""
	}
	v, err := rec.Decoded()
	if err != nil {
		return codec.RenderRaw(rec.Raw)
	}
	return codec.Render(v)
}

// BeginEdit opens an edit of key seeded with its rendered value. The value is
// fetched unless key is already selected.
func (c *Controller) BeginEdit(ctx context.Context, key string) (*pkg.EditSession, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	client, err := c.liveClient("edit", Connected)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	rec := c.record
	if c.selected != key {
		rec = nil
	}
	c.mu.RUnlock()

	if rec == nil {
		if rec, err = c.load(ctx, client, key); err != nil {
			return nil, err
		}
	}

	edit := pkg.NewEditSession(rec, RenderRecord(rec))
	c.mu.Lock()
	c.edit = edit
	from := c.transition(EditingKey)
	snapshot := *edit
	c.mu.Unlock()
	c.notify(from, EditingKey)

	c.log.Debug().Str("key", key).Bool("decoded", rec.CodecErr() == nil).Msg("Edit started")
	return &snapshot, nil
}

// UpdateEdit replaces the pending text of the open edit
func (c *Controller) UpdateEdit(text string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != EditingKey || c.edit == nil {
		return ErrNoEdit
	}
	c.edit.SetText(text)
	return nil
}

// CancelEdit discards the open edit. Nothing is written.
func (c *Controller) CancelEdit() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != EditingKey {
		c.mu.Unlock()
		return ErrNoEdit
	}
	key := c.edit.Key
	c.edit = nil
	from := c.transition(Connected)
	c.mu.Unlock()
	c.notify(from, Connected)

	c.log.Debug().Str("key", key).Msg("Edit cancelled")
	return nil
}

// encodeEdit turns the pending text into bytes for the store. Values the
// codec could not decode are written back as the raw text.
func (c *Controller) encodeEdit(edit *pkg.EditSession) ([]byte, error) {
	original, err := edit.Original.Decoded()
	if err != nil {
		raw, err := codec.ParseRaw(edit.PendingText, edit.Original.Raw)
		if err != nil {
			return nil, err
		}
		return c.raw.Encode(raw)
	}
	value, err := codec.ParseText(edit.PendingText, original)
	if err != nil {
		return nil, err
	}
	return c.codec.Encode(value)
}

// CommitEdit writes the pending edit to its key. The write is refused with
// ErrSelectionChanged when the selection moved to another key since the edit
// began. On any failure the edit stays open with its text intact.
func (c *Controller) CommitEdit(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	state, edit, selected, client := c.state, c.edit, c.selected, c.client
	c.mu.RUnlock()

	if state != EditingKey || edit == nil {
		return ErrNoEdit
	}
	if selected != edit.Key {
		err := fmt.Errorf("%w: editing %q, selected %q", ErrSelectionChanged, edit.Key, selected)
		c.log.Warn().Str("key", edit.Key).Str("selected", selected).Msg("Commit refused")
		return err
	}

	if !edit.Dirty {
		c.mu.Lock()
		c.edit = nil
		from := c.transition(Connected)
		c.mu.Unlock()
		c.notify(from, Connected)
		c.log.Debug().Str("key", edit.Key).Msg("Edit unchanged, nothing written")
		return nil
	}

	data, err := c.encodeEdit(edit)
	if err != nil {
		c.recordErr(err)
		return err
	}
	if err := client.Set(ctx, edit.Key, data); err != nil {
		c.recordErr(err)
		c.log.Warn().Err(err).Str("key", edit.Key).Msg("Commit failed")
		return err
	}

	c.mu.Lock()
	c.record = pkg.NewValueRecord(edit.Key, data, c.codec)
	c.edit = nil
	c.stale = true
	from := c.transition(Connected)
	c.mu.Unlock()
	c.notify(from, Connected)

	c.log.Info().Str("key", edit.Key).Int("bytes", len(data)).Msg("Value committed")
	return nil
}

// DeleteKey removes key. A key that was already gone is not an error: the
// outcome is pkg.AlreadyAbsent and the controller stays Connected.
func (c *Controller) DeleteKey(ctx context.Context, key string) (pkg.DeleteOutcome, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	client, err := c.liveClient("delete", Connected)
	if err != nil {
		return 0, err
	}

	outcome, err := client.Delete(ctx, key)
	if err != nil && !errors.Is(err, pkg.ErrNotFound) {
		c.recordErr(err)
		return 0, err
	}

	c.mu.Lock()
	kept := c.listing[:0]
	for _, entry := range c.listing {
		if entry.Name != key {
			kept = append(kept, entry)
		}
	}
	c.listing = kept
	if c.selected == key {
		c.selected = ""
		c.record = nil
	}
	c.mu.Unlock()

	if outcome == pkg.AlreadyAbsent {
		c.log.Warn().Str("key", key).Msg("Key was already absent")
		return outcome, nil
	}
	c.log.Info().Str("key", key).Msg("Key deleted")
	return outcome, nil
}

// AddKey creates key holding text as a string value. An existing key is left
// alone and pkg.ErrKeyExists is returned.
func (c *Controller) AddKey(ctx context.Context, key, text string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if key == "" {
		return fmt.Errorf("%w: key name is empty", pkg.ErrInvalidConfig)
	}
	client, err := c.liveClient("add", Connected)
	if err != nil {
		return err
	}

	data, err := c.codec.Encode(text)
	if err != nil {
		return err
	}
	if err := client.Create(ctx, key, data); err != nil {
		if !errors.Is(err, pkg.ErrKeyExists) {
			c.recordErr(err)
		}
		return err
	}

	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()

	c.log.Info().Str("key", key).Msg("Key added")
	return nil
}

// Stream starts an incremental search bound to the current session. It does
// not touch the stored listing.
func (c *Controller) Stream(ctx context.Context, substring string) (*search.Results, error) {
	client, err := c.liveClient("search", Connected, EditingKey)
	if err != nil {
		return nil, err
	}
	return c.search.Search(ctx, client, substring), nil
}

// Search replaces the listing with the keys containing substring. It may run
// while an edit is open and never touches the pending edit. When a newer
// search or a disconnect overtakes it, its result is returned but not stored.
func (c *Controller) Search(ctx context.Context, substring string) ([]pkg.KeyEntry, error) {
	c.mu.Lock()
	if !c.state.HasSession() {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: search while %s", ErrInvalidTransition, state)
	}
	c.searchGen++
	gen, client := c.searchGen, c.client
	c.mu.Unlock()

	entries, truncated, err := c.search.Search(ctx, client, substring).Collect(ctx, c.listLimit)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.searchGen {
		c.log.Debug().Str("substring", substring).Msg("Search superseded")
		return entries, err
	}
	if err != nil {
		c.lastErr = err
		c.log.Warn().Err(err).Str("substring", substring).Msg("Search failed")
		return nil, err
	}
	c.listing = entries
	c.truncated = truncated
	c.stale = false
	c.log.Debug().Str("substring", substring).Int("keys", len(entries)).Bool("truncated", truncated).Msg("Listing refreshed")
	return append([]pkg.KeyEntry(nil), entries...), nil
}

// Refresh lists every key
func (c *Controller) Refresh(ctx context.Context) ([]pkg.KeyEntry, error) {
	return c.Search(ctx, "")
}

// ToggleTheme flips the theme and returns the new one
func (c *Controller) ToggleTheme() pkg.Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.theme = c.theme.Toggle()
	return c.theme
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ConnectionState reports the health of the live session. It is Failed
// while the store stops answering, so a presentation layer can offer to
// reconnect, and Disconnected when there is no session.
func (c *Controller) ConnectionState() pkg.ConnectionState {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return pkg.Disconnected
	}
	return client.State()
}

// Config returns the configuration of the last connect attempt
func (c *Controller) Config() pkg.ConnectionConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Listing returns a copy of the last listing
func (c *Controller) Listing() []pkg.KeyEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]pkg.KeyEntry(nil), c.listing...)
}

// ListingStale reports whether a mutation happened since the last listing
func (c *Controller) ListingStale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stale
}

// ListingTruncated reports whether the last listing hit the list limit
func (c *Controller) ListingTruncated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.truncated
}

func (c *Controller) Selected() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// Record returns the selected value, or nil
func (c *Controller) Record() *pkg.ValueRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record
}

// Edit returns a copy of the open edit, or nil
func (c *Controller) Edit() *pkg.EditSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.edit == nil {
		return nil
	}
	e := *c.edit
	return &e
}

func (c *Controller) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Controller) Theme() pkg.Theme {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.theme
}
