package runtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestRecord is one completed request entry in the append-only
// Session ledger (§3 "Session").
type RequestRecord struct {
	ID               string
	DocumentID       string
	Model            string
	Provider         string
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
	ThinkingTokens   int
	CostUSD          float64
	CompletedAt      time.Time
}

// Session is the process-wide, append-only record of completed requests.
// Grounded on the teacher's internal/agent/loop.go job/usage accounting,
// generalized into a dedicated ledger type per the spec's Session model.
type Session struct {
	mu      sync.Mutex
	records []RequestRecord
}

// NewSession constructs an empty session ledger.
func NewSession() *Session {
	return &Session{}
}

// Append records a completed request. Existing records are never
// mutated.
func (s *Session) Append(rec RequestRecord) RequestRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return rec
}

// Records returns a snapshot copy of every recorded request.
func (s *Session) Records() []RequestRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RequestRecord, len(s.records))
	copy(out, s.records)
	return out
}

// TotalCostUSD sums the cost of every recorded request.
func (s *Session) TotalCostUSD() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, r := range s.records {
		total += r.CostUSD
	}
	return total
}
