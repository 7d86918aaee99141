package runtime

import (
	"sync"

	"github.com/flemma-dev/flemma-core/internal/ast"
)

// astCacheEntry is the §4.3.3 {version, document} cache pair: the cached
// document is valid only while version matches the document's current
// change counter.
type astCacheEntry struct {
	version  uint64
	document *ast.Document
}

// DocumentState is the per-document state named in §3: in-flight request
// bookkeeping, the lock flag, and the AST cache. One is created on first
// access and destroyed when its document closes.
type DocumentState struct {
	mu sync.Mutex

	currentRequestID string
	requestCancelled bool
	inflightUsage    RequestRecord
	locked           bool
	waitingForTools  bool

	changeVersion uint64
	astCache      *astCacheEntry
}

func newDocumentState() *DocumentState {
	return &DocumentState{}
}

// CurrentRequestID reports the in-flight request id, if any.
func (d *DocumentState) CurrentRequestID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentRequestID
}

// BeginRequest records a new in-flight request id and clears the
// cancellation flag.
func (d *DocumentState) BeginRequest(requestID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.currentRequestID = requestID
	d.requestCancelled = false
}

// EndRequest clears the in-flight request id.
func (d *DocumentState) EndRequest() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.currentRequestID = ""
}

// Cancel marks the in-flight request cancelled. RunPipeline reads the flag
// to mark the last assistant message's parts aborted, and BeginRequest
// clears it; autopilot state is not changed by it.
func (d *DocumentState) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requestCancelled = true
}

// Cancelled reports whether the in-flight request has been cancelled.
func (d *DocumentState) Cancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requestCancelled
}

// SetWaitingForTools records whether the document is parked awaiting
// tool execution.
func (d *DocumentState) SetWaitingForTools(waiting bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitingForTools = waiting
}

// WaitingForTools reports the current waiting-for-tools flag.
func (d *DocumentState) WaitingForTools() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waitingForTools
}

// Lock marks the document non-modifiable while a request or tool is
// active. Unlock must be called on every exit path; call the closure Lock
// returns to guarantee that.
func (d *DocumentState) Lock() func() {
	d.mu.Lock()
	d.locked = true
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		d.locked = false
		d.mu.Unlock()
	}
}

// Locked reports whether the document is currently locked.
func (d *DocumentState) Locked() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.locked
}

// BumpVersion increments the change counter, invalidating any cached AST.
func (d *DocumentState) BumpVersion() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changeVersion++
	return d.changeVersion
}

// CachedDocument returns the cached AST if its version still matches the
// current change counter.
func (d *DocumentState) CachedDocument() (*ast.Document, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.astCache == nil || d.astCache.version != d.changeVersion {
		return nil, false
	}
	return d.astCache.document, true
}

// StoreDocument caches doc against the current change counter.
func (d *DocumentState) StoreDocument(doc *ast.Document) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.astCache = &astCacheEntry{version: d.changeVersion, document: doc}
}
