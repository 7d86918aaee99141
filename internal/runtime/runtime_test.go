package runtime

import (
	"strings"
	"testing"

	"github.com/flemma-dev/flemma-core/internal/approval"
	"github.com/flemma-dev/flemma-core/internal/autopilot"
	"github.com/flemma-dev/flemma-core/internal/config"
	"github.com/flemma-dev/flemma-core/internal/evaluator"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg, err := config.Parse("")
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	r, err := New(cfg, autopilot.Hooks{}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestNewWithSessionStorePathPersistsRequests(t *testing.T) {
	cfg, err := config.Parse("")
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	r, err := New(cfg, autopilot.Hooks{}, Options{SessionStorePath: ":memory:"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if r.SessionStore == nil {
		t.Fatal("expected SessionStorePath to wire a SessionStore")
	}
	if _, err := r.RecordRequest(RequestRecord{DocumentID: "doc1", CostUSD: 1.0}); err != nil {
		t.Fatalf("RecordRequest: %v", err)
	}

	persisted, err := r.SessionStore.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(persisted) != 1 {
		t.Fatalf("expected 1 persisted record, got %d", len(persisted))
	}
	if len(r.Session.Records()) != 1 {
		t.Fatal("expected RecordRequest to also update the in-memory ledger")
	}
}

func TestNewInitializesCollaborators(t *testing.T) {
	r := newTestRuntime(t)
	if r.Codeblocks == nil || r.Evaluator == nil || r.Processor == nil || r.Pipeline == nil {
		t.Fatal("expected New to wire codeblocks/evaluator/processor/pipeline")
	}
	if r.Approval == nil || r.Autopilot == nil || r.Session == nil {
		t.Fatal("expected New to wire approval/autopilot/session")
	}
}

func TestParseCachedReturnsSameDocumentUntilInvalidated(t *testing.T) {
	r := newTestRuntime(t)
	lines := strings.Split("@You: hello", "\n")

	first := r.ParseCached("doc1", lines)
	second := r.ParseCached("doc1", lines)
	if first != second {
		t.Fatal("expected ParseCached to return the cached document on repeat calls")
	}

	r.InvalidateDocument("doc1")
	third := r.ParseCached("doc1", lines)
	if third == first {
		t.Fatal("expected ParseCached to reparse after invalidation")
	}
}

func TestRunPipelineConsultsDocumentStateCancelled(t *testing.T) {
	r := newTestRuntime(t)
	lines := strings.Split("@You: hi\n@Assistant: partial answer", "\n")
	doc := r.ParseCached("doc1", lines)

	r.DocumentState("doc1").Cancel()
	prompt, _ := r.RunPipeline("doc1", doc, evaluator.NewContext("doc1"), nil)

	assistant := prompt.History[1].Parts
	if len(assistant) != 1 || !strings.Contains(assistant[0].Text, "[response truncated: partial answer]") {
		t.Fatalf("expected RunPipeline to feed the cancelled flag through, got %+v", assistant)
	}
}

func TestDocumentStateLockUnlockRoundTrip(t *testing.T) {
	r := newTestRuntime(t)
	state := r.DocumentState("doc1")
	if state.Locked() {
		t.Fatal("expected unlocked initial state")
	}
	unlock := state.Lock()
	if !state.Locked() {
		t.Fatal("expected locked after Lock()")
	}
	unlock()
	if state.Locked() {
		t.Fatal("expected unlocked after the unlock closure runs")
	}
}

func TestCloseDocumentTearsDownState(t *testing.T) {
	r := newTestRuntime(t)
	r.DocumentState("doc1").Cancel()
	r.CloseDocument("doc1")

	fresh := r.DocumentState("doc1")
	if fresh.Cancelled() {
		t.Fatal("expected a fresh DocumentState after CloseDocument, not the stale cancelled one")
	}
}

func TestFrontmatterAutoApproveIsWiredIntoTheRealChain(t *testing.T) {
	cfg, err := config.Parse("approval:\n  require_approval: true\n")
	if err != nil {
		t.Fatalf("config.Parse: %v", err)
	}
	r, err := New(cfg, autopilot.Hooks{}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	opts := &evaluator.ResolvedOpts{AutoApprove: []string{"bash*"}}

	got := r.ResolveApproval(approval.Input{ToolName: "bash_run"}, opts)
	if got != approval.Approve {
		t.Fatalf("expected frontmatter auto_approve pattern to approve bash_run, got %v", got)
	}

	got = r.ResolveApproval(approval.Input{ToolName: "write_file"}, opts)
	if got != approval.RequireApproval {
		t.Fatalf("expected write_file to fall through to require_approval, got %v", got)
	}
}

func TestSessionAppendIsAppendOnly(t *testing.T) {
	s := NewSession()
	s.Append(RequestRecord{DocumentID: "doc1", CostUSD: 1.5})
	s.Append(RequestRecord{DocumentID: "doc1", CostUSD: 2.5})

	records := s.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if got := s.TotalCostUSD(); got != 4.0 {
		t.Fatalf("expected total cost 4.0, got %v", got)
	}
}
