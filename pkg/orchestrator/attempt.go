package orchestrator

import (
	"fmt"
	"path"
	"slices"
	"time"
)

// State is the lifecycle state of an upload attempt.
type State int

const (
	StatePending State = iota
	StateStreaming
	StateHealing
	StateRetrying
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStreaming:
		return "streaming"
	case StateHealing:
		return "healing"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// transitions lists the legal successors of each state. Healing is reachable
// from streaming only, so an attempt can be retried at most once.
var transitions = map[State][]State{
	StatePending:   {StateStreaming},
	StateStreaming: {StateSucceeded, StateFailed, StateHealing},
	StateHealing:   {StateRetrying, StateFailed},
	StateRetrying:  {StateSucceeded, StateFailed},
}

// Attempt is one admitted upload. It is owned by the goroutine driving it
// and handed to the completion hook once terminal.
type Attempt struct {
	ID string
	// Shard is the first ShardPrefixLen characters of ID.
	Shard string
	// Dir is the shard directory, the immediate parent of Path.
	Dir  string
	Path string

	Started  time.Time
	Duration time.Duration
	// Bytes is the number of bytes accepted by the successful sink.
	Bytes int64
	// Err is the failure of a failed attempt.
	Err error

	state   State
	history []State
}

func newAttempt(root, id string) *Attempt {
	objectPath := ObjectPath(root, id)

	return &Attempt{
		ID:      id,
		Shard:   ShardPrefix(id),
		Dir:     path.Dir(objectPath),
		Path:    objectPath,
		Started: time.Now(),
		state:   StatePending,
		history: []State{StatePending},
	}
}

// State returns the current state.
func (a *Attempt) State() State {
	return a.state
}

// History returns every state the attempt has been in, in order.
func (a *Attempt) History() []State {
	return slices.Clone(a.history)
}

// Retried reports whether the upload was retried after healing.
func (a *Attempt) Retried() bool {
	return slices.Contains(a.history, StateRetrying)
}

// transition moves the attempt to next. An illegal transition is a
// programming error and panics.
func (a *Attempt) transition(next State) {
	if !slices.Contains(transitions[a.state], next) {
		panic(fmt.Sprintf("orchestrator: illegal transition %s -> %s", a.state, next))
	}

	a.state = next
	a.history = append(a.history, next)
}
