package memory

import (
	"context"
	"testing"

	"budgettable/internal/core"
	"budgettable/internal/exchange"
)

func TestStoreExportAndEntries(t *testing.T) {
	s := New()
	if err := s.Export(context.Background(), exchange.Entry{EventID: "a", Event: core.RowDeletedEvent(1)}); err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}
	if err := s.Export(context.Background(), exchange.Entry{EventID: "b", Event: core.PeriodDeletedEvent(2)}); err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}

	entries := s.Entries()
	if len(entries) != 2 || s.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].EventID != "a" || entries[1].Event.PeriodID != 2 {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	entries[0].EventID = "changed"
	if s.Entries()[0].EventID != "a" {
		t.Fatal("Entries must return a copy")
	}
}
