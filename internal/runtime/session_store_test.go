package runtime

import (
	"testing"
	"time"
)

func TestSessionStoreAppendAndRecords(t *testing.T) {
	store, err := OpenSessionStore(":memory:")
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	defer store.Close()

	rec, err := store.Append(RequestRecord{
		DocumentID:   "doc-1",
		Model:        "claude",
		Provider:     "anthropic",
		InputTokens:  10,
		OutputTokens: 20,
		CostUSD:      0.05,
		CompletedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected Append to mint an id")
	}

	records, err := store.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].DocumentID != "doc-1" {
		t.Errorf("expected document id doc-1, got %q", records[0].DocumentID)
	}

	total, err := store.TotalCostUSD()
	if err != nil {
		t.Fatalf("TotalCostUSD: %v", err)
	}
	if total != 0.05 {
		t.Errorf("expected total cost 0.05, got %v", total)
	}
}

func TestSessionStoreTotalCostUSDWithNoRecords(t *testing.T) {
	store, err := OpenSessionStore(":memory:")
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	defer store.Close()

	total, err := store.TotalCostUSD()
	if err != nil {
		t.Fatalf("TotalCostUSD: %v", err)
	}
	if total != 0 {
		t.Errorf("expected total cost 0, got %v", total)
	}
}
