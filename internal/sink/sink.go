// Package sink implements the streaming sink: a lazy, append-only,
// line-framed accumulator for provider responses with backpressure-
// friendly batched flushing.
//
// Grounded on the teacher's internal/gateway/debounce.go (self-
// rescheduling time.AfterFunc flush cycle, per-key buffer mutated in
// place) and internal/agent/event_sink.go (the reentrancy-tolerant,
// error-swallowing callback contract).
package sink

import (
	"strings"
	"sync"
	"time"
)

// DefaultFlushInterval is the fixed batching interval from §4.7.
const DefaultFlushInterval = 50 * time.Millisecond

// OnLine is called synchronously, exactly once per complete line, with
// the write that completed it. The callback must tolerate reentrancy
// (calling back into the sink); any panic is recovered and logged rather
// than propagated, mirroring the teacher's "errors are caught and logged"
// plugin-dispatch contract.
type OnLine func(line string)

// OnError receives a recovered panic from an OnLine callback.
type OnError func(err any)

// Config configures a Sink.
type Config struct {
	FlushInterval time.Duration
	OnLine        OnLine
	OnError       OnError
	// IsVisible reports whether the backing store is currently visible to
	// a user; when true, Destroy defers until visibility ends.
	IsVisible func() bool
}

// Sink is a lazy, append-only, line-framed accumulator. The zero value is
// not ready for use; construct with New.
type Sink struct {
	cfg Config

	mu      sync.Mutex
	drained []string
	pending []string
	partial string

	timer            *time.Timer
	allocated        bool
	destroyed        bool
	destroyRequested bool
}

// New constructs a Sink. No buffer or timer is allocated until the first
// write.
func New(cfg Config) *Sink {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &Sink{cfg: cfg}
}

// Write appends raw chunk data, splitting on '\n'. A trailing partial line
// (no terminating newline) is buffered until the next write or Flush.
func (s *Sink) Write(chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.ensureAllocatedLocked()

	combined := s.partial + chunk
	segments := strings.Split(combined, "\n")
	for i, seg := range segments {
		if i == len(segments)-1 {
			s.partial = seg
			continue
		}
		s.appendCompleteLineLocked(seg)
	}
}

// WriteLines appends pre-framed lines. Any buffered partial is first
// flushed as a complete line.
func (s *Sink) WriteLines(lines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.ensureAllocatedLocked()

	if s.partial != "" {
		p := s.partial
		s.partial = ""
		s.appendCompleteLineLocked(p)
	}
	for _, l := range lines {
		s.appendCompleteLineLocked(l)
	}
}

// appendCompleteLineLocked records a complete line, fires the on-line
// callback synchronously, and queues it for the next batched drain. The
// caller must hold s.mu.
func (s *Sink) appendCompleteLineLocked(line string) {
	s.pending = append(s.pending, line)
	s.fireOnLine(line)
}

func (s *Sink) fireOnLine(line string) {
	if s.cfg.OnLine == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && s.cfg.OnError != nil {
			s.cfg.OnError(r)
		}
	}()
	s.cfg.OnLine(line)
}

func (s *Sink) ensureAllocatedLocked() {
	if s.allocated {
		return
	}
	s.allocated = true
	s.drained = []string{}
	s.pending = []string{}
	s.scheduleLocked()
}

func (s *Sink) scheduleLocked() {
	s.timer = time.AfterFunc(s.cfg.FlushInterval, s.drainTick)
}

// drainTick is the timer callback: it moves pending lines into drained
// storage and reschedules itself, mutating the pending slice in place
// (truncated, not reallocated) so its identity stays stable for callers
// holding a reference.
func (s *Sink) drainTick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.drainLocked()
	s.scheduleLocked()
}

func (s *Sink) drainLocked() {
	if len(s.pending) == 0 {
		return
	}
	s.drained = append(s.drained, s.pending...)
	s.pending = s.pending[:0]
}

// Flush promotes any buffered partial line to a complete line (firing
// on_line) and immediately drains the pending queue.
func (s *Sink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.ensureAllocatedLocked()
	if s.partial != "" {
		p := s.partial
		s.partial = ""
		s.appendCompleteLineLocked(p)
	}
	s.drainLocked()
}

// Read returns the full accumulated content, including any buffered
// partial line, without destroying state.
func (s *Sink) Read() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]string, 0, len(s.drained)+len(s.pending)+1)
	all = append(all, s.drained...)
	all = append(all, s.pending...)
	body := strings.Join(all, "\n")
	if s.partial != "" {
		if body != "" {
			body += "\n"
		}
		body += s.partial
	}
	return body
}

// ReadLines returns the full accumulated content as a line slice. The
// buffered partial is included only if non-empty.
func (s *Sink) ReadLines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.drained)+len(s.pending)+1)
	out = append(out, s.drained...)
	out = append(out, s.pending...)
	if s.partial != "" {
		out = append(out, s.partial)
	}
	return out
}

// Destroy flushes, stops the timer, and releases the backing buffer. If
// IsVisible reports true, destruction is deferred until SetVisible(false)
// is observed. Double-destroy is a no-op.
func (s *Sink) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	if s.partial != "" {
		p := s.partial
		s.partial = ""
		s.appendCompleteLineLocked(p)
	}
	s.drainLocked()

	if s.cfg.IsVisible != nil && s.cfg.IsVisible() {
		s.destroyRequested = true
		return
	}
	s.destroyLocked()
}

// SetVisible lets the host notify the sink of a visibility change;
// becoming invisible completes a deferred Destroy.
func (s *Sink) SetVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !visible && s.destroyRequested && !s.destroyed {
		s.destroyLocked()
	}
}

func (s *Sink) destroyLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.drained = nil
	s.pending = nil
	s.partial = ""
	s.destroyed = true
	s.destroyRequested = false
}
