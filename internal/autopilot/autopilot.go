// Package autopilot implements the per-document state machine that
// drives the "respond → execute tools → resend" loop (§4.8).
//
// Grounded on the teacher's internal/agent/loop.go AgenticLoop: a typed
// phase state machine (PhaseInit/Stream/ExecuteTools/Continue/Complete)
// with a hard iteration ceiling (LoopConfig.MaxIterations), generalized
// here into the spec's idle/armed/sending/paused states and reworked so
// transitions always schedule their follow-up rather than recursing
// inline (§5 "Autopilot" suspension point).
package autopilot

import "sync"

// State is one of the four autopilot states for a document.
type State string

const (
	Idle    State = "idle"
	Armed   State = "armed"
	Sending State = "sending"
	Paused  State = "paused"
)

// Hooks are the external collaborators the state machine consults. Any
// hook may be nil: New makes a nil Schedule run fn inline and a nil
// Notify a no-op, a nil predicate counts as false, and any other nil
// hook is skipped.
type Hooks struct {
	// LastAssistantHasToolUse reports whether the last assistant message
	// in the current AST for docID contains a tool_use segment.
	LastAssistantHasToolUse func(docID string) bool
	// HasUnprocessedToolUses reports whether any tool_use in the current
	// AST is still awaiting execution (covers the multi-tool response
	// race called out in §4.8 step on_tools_complete.2).
	HasUnprocessedToolUses func(docID string) bool
	// HasPendingPlaceholders reports whether any tool_result in the
	// current AST is still a status-marked placeholder awaiting user
	// action.
	HasPendingPlaceholders func(docID string) bool
	// FrontmatterOverride returns the document's resolved `autopilot`
	// opt, or nil if the frontmatter didn't set one.
	FrontmatterOverride func(docID string) *bool
	// Notify surfaces a one-shot user-visible message (e.g. the
	// max-turns notice).
	Notify func(docID, message string)
	// Schedule defers fn to the next event-loop tick rather than calling
	// it inline, so state transitions never recurse within one turn.
	Schedule func(fn func())
	// Send is invoked when the machine decides to (re)send the
	// conversation to the provider.
	Send func(docID string)
	// ExecuteTools is invoked when a document arms after a response
	// containing tool_use segments, to run those tools. The caller is
	// expected to call OnToolsComplete once execution finishes.
	ExecuteTools func(docID string)
}

// Config holds the global, process-wide autopilot settings.
type Config struct {
	MaxTurns int
	// Enabled is the global config default (tools.autopilot.enabled),
	// overridden per-document by frontmatter.
	Enabled bool
}

type docState struct {
	mu        sync.Mutex
	state     State
	iteration int
}

// Autopilot owns per-document state machines keyed by document id.
type Autopilot struct {
	cfg   Config
	hooks Hooks

	mu   sync.Mutex
	docs map[string]*docState
}

// New constructs an Autopilot. MaxTurns defaults to 25 if unset.
func New(cfg Config, hooks Hooks) *Autopilot {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 25
	}
	if hooks.Schedule == nil {
		hooks.Schedule = func(fn func()) { fn() }
	}
	if hooks.Notify == nil {
		hooks.Notify = func(string, string) {}
	}
	return &Autopilot{cfg: cfg, hooks: hooks, docs: map[string]*docState{}}
}

func (a *Autopilot) doc(docID string) *docState {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.docs[docID]
	if !ok {
		d = &docState{state: Idle}
		a.docs[docID] = d
	}
	return d
}

// Close tears down a document's autopilot state on document close.
func (a *Autopilot) Close(docID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.docs, docID)
}

// StateOf reports the current state and iteration count for a document.
func (a *Autopilot) StateOf(docID string) (State, int) {
	d := a.doc(docID)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, d.iteration
}

// IsEnabled resolves frontmatter `autopilot` opt over the global config
// default.
func (a *Autopilot) IsEnabled(docID string) bool {
	if a.hooks.FrontmatterOverride != nil {
		if v := a.hooks.FrontmatterOverride(docID); v != nil {
			return *v
		}
	}
	return a.cfg.Enabled
}

// SetEnabled toggles the global default.
func (a *Autopilot) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.Enabled = enabled
}

// Arm forces a document directly to armed, bypassing on_response_complete
// (external control, e.g. a manual "keep going" command).
func (a *Autopilot) Arm(docID string) {
	d := a.doc(docID)
	d.mu.Lock()
	d.state = Armed
	d.mu.Unlock()
}

// Disarm resets a document to idle and zeroes its iteration counter.
func (a *Autopilot) Disarm(docID string) {
	d := a.doc(docID)
	d.mu.Lock()
	d.state = Idle
	d.iteration = 0
	d.mu.Unlock()
}

// Fail transitions a document to idle and resets its counter, per the
// failure semantics in §5: any external error (cancellation, provider
// error, buffer wipe) parks the machine.
func (a *Autopilot) Fail(docID string) {
	a.Disarm(docID)
}

// OnResponseComplete implements §4.8's on_response_complete event.
func (a *Autopilot) OnResponseComplete(docID string) {
	if !a.IsEnabled(docID) {
		return
	}
	if a.hooks.LastAssistantHasToolUse == nil || !a.hooks.LastAssistantHasToolUse(docID) {
		return // conversation quiesced
	}

	d := a.doc(docID)
	d.mu.Lock()
	d.iteration++
	exceeded := d.iteration > a.cfg.MaxTurns
	if exceeded {
		d.state = Idle
		d.iteration = 0
	} else {
		d.state = Armed
	}
	d.mu.Unlock()

	if exceeded {
		a.hooks.Notify(docID, "autopilot exceeded max turns")
		return
	}
	a.hooks.Schedule(func() {
		if a.hooks.ExecuteTools != nil {
			a.hooks.ExecuteTools(docID)
		}
	})
}

// OnToolsComplete implements §4.8's on_tools_complete event.
func (a *Autopilot) OnToolsComplete(docID string) {
	d := a.doc(docID)
	d.mu.Lock()
	if d.state != Armed {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	if a.hooks.HasUnprocessedToolUses != nil && a.hooks.HasUnprocessedToolUses(docID) {
		return // race between multi-tool responses; event will re-fire
	}

	if a.hooks.HasPendingPlaceholders != nil && a.hooks.HasPendingPlaceholders(docID) {
		d.mu.Lock()
		d.state = Paused
		d.mu.Unlock()
		return
	}

	d.mu.Lock()
	d.state = Sending
	d.mu.Unlock()

	a.hooks.Schedule(func() {
		if a.hooks.Send != nil {
			a.hooks.Send(docID)
		}
	})
}
