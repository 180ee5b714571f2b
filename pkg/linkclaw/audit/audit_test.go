package audit

import (
	"path/filepath"
	"testing"
)

func TestRecordAndRecent(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	log.Record(Entry{
		TenantID:  "g1",
		ChannelID: "c1",
		MessageID: "m1",
		SourceURL: "https://i.4cdn.org/b/1.jpg",
		SizeBytes: 1234,
	})
	log.Record(Entry{
		TenantID:  "g1",
		ChannelID: "c1",
		MessageID: "m2",
		SourceURL: "https://i.4cdn.org/b/2.png",
		SizeBytes: 99,
	})

	entries, err := log.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest first.
	if entries[0].MessageID != "m2" || entries[1].MessageID != "m1" {
		t.Errorf("wrong order: %v, %v", entries[0].MessageID, entries[1].MessageID)
	}
	if entries[1].SizeBytes != 1234 {
		t.Errorf("SizeBytes = %d, want 1234", entries[1].SizeBytes)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestRecent_Empty(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	entries, err := log.Recent(5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}
