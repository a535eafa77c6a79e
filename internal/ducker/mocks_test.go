package ducker

import (
	"errors"
	"sync"
	"time"

	"github.com/soundloop/camduck/internal/probe"
)

// scriptedProber replays a fixed sequence of readings, then keeps returning
// the last one.
type scriptedProber struct {
	mu       sync.Mutex
	readings []bool
	next     int
}

func newScriptedProber(readings ...bool) *scriptedProber {
	return &scriptedProber{readings: readings}
}

func (p *scriptedProber) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.readings) == 0 {
		return false
	}
	if p.next >= len(p.readings) {
		return p.readings[len(p.readings)-1]
	}
	reading := p.readings[p.next]
	p.next++
	return reading
}

var _ probe.Prober = (*scriptedProber)(nil)

type sentCommand struct {
	name  string
	value float64
	at    time.Time
}

// recordingSetter captures every command with a timestamp.
type recordingSetter struct {
	mu   sync.Mutex
	sent []sentCommand
	err  error
}

func (s *recordingSetter) SetParameter(name string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentCommand{name: name, value: value, at: time.Now()})
	return nil
}

func (s *recordingSetter) commands() []sentCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentCommand, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *recordingSetter) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

var errSetterDown = errors.New("endpoint unreachable")
