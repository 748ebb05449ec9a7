package session

import "errors"

// State is the controller state seen by the presentation layer
type State int

const (
	// NoSession is the initial state and the state after a failed connect
	NoSession State = iota
	// Connecting means a connect is in flight
	Connecting
	// Connected means a session is live and no edit is open
	Connected
	// EditingKey means a session is live and an EditSession is open
	EditingKey
	// Disconnected means the user closed the session
	Disconnected
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case NoSession:
		return "no_session"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case EditingKey:
		return "editing_key"
	case Disconnected:
		return "disconnected"
	default:
		return "invalid"
	}
}

// HasSession reports whether a live store session backs this state
func (s State) HasSession() bool {
	return s == Connected || s == EditingKey
}

// CanConnect reports whether connect is allowed from this state
func (s State) CanConnect() bool {
	return s == NoSession || s == Disconnected
}

// Controller errors
var (
	ErrInvalidTransition = errors.New("operation not allowed in current state")
	ErrEditInProgress    = errors.New("an edit is already in progress")
	ErrNoEdit            = errors.New("no edit in progress")
	ErrSelectionChanged  = errors.New("selection changed since the edit began")
)
