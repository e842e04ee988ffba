package api

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/gimbalworks/servolink/internal/interp"
)

// HandledCommand is the event published to API subscribers for every command
// the interpreter answered.
type HandledCommand struct {
	Source   string `json:"source"`
	Line     string `json:"line"`
	Response string `json:"response"`
	Angle    int    `json:"angle,omitempty"`
	Accepted bool   `json:"accepted"`
	At       int64  `json:"at"`
}

// State is the thread-safe view of the interpreter that the HTTP layer
// reads. The interpreter goroutine is the single writer.
type State struct {
	mu           sync.Mutex
	startedAt    time.Time
	ready        bool
	angle        int
	lastLine     string
	lastResponse string
	lastAt       time.Time

	subscribers map[string]chan HandledCommand
}

// NewState creates a State with the given initial angle.
func NewState(initialAngle int) *State {
	return &State{
		startedAt:   time.Now(),
		angle:       initialAngle,
		subscribers: make(map[string]chan HandledCommand),
	}
}

// SetReady marks startup as complete.
func (s *State) SetReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
}

// RecordEvent folds one interpreter event into the state and publishes it to
// subscribers.
func (s *State) RecordEvent(source string, ev interp.Event) {
	now := time.Now()

	s.mu.Lock()
	s.lastLine = ev.Line
	s.lastResponse = ev.Response
	s.lastAt = now
	if ev.Accepted {
		s.angle = ev.Angle
	}
	subs := make([]chan HandledCommand, 0, len(s.subscribers))
	for _, ch := range s.subscribers {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	event := HandledCommand{
		Source:   source,
		Line:     ev.Line,
		Response: ev.Response,
		Angle:    ev.Angle,
		Accepted: ev.Accepted,
		At:       now.Unix(),
	}
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Drop rather than block the interpreter goroutine.
		}
	}
}

// Subscribe registers a channel receiving handled-command events.
func (s *State) Subscribe() (string, chan HandledCommand) {
	b := make([]byte, 8)
	crand.Read(b)
	id := hex.EncodeToString(b)

	ch := make(chan HandledCommand, 16)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *State) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Snapshot is a point-in-time copy of the state for the status endpoint.
type Snapshot struct {
	Ready        bool
	Angle        int
	LastLine     string
	LastResponse string
	LastAt       time.Time
	Uptime       time.Duration
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Ready:        s.ready,
		Angle:        s.angle,
		LastLine:     s.lastLine,
		LastResponse: s.lastResponse,
		LastAt:       s.lastAt,
		Uptime:       time.Since(s.startedAt),
	}
}
