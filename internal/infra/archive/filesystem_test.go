package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/magicaleks/qudata-broker/internal/domain"
)

func TestFilesystemArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := NewFilesystemArchive(dir)

	entries := []domain.RouteLogEntry{
		{Time: time.Now().UTC(), JobID: "job-1", Phase: domain.PhaseSubmitted, Message: "requirements submitted"},
		{Time: time.Now().UTC(), JobID: "job-1", Phase: domain.PhaseFiltering, Message: "filtered 1 of 2 providers",
			Fields: map[string]any{"candidates_before": 2, "candidates_after": 1}},
		{Time: time.Now().UTC(), JobID: "job-1", Phase: domain.PhaseFailed, Message: "no bids received"},
	}

	if err := a.Archive(context.Background(), "job-1", entries); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "job-1.jsonl"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()

	var got []domain.RouteLogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry domain.RouteLogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("decode archive line: %v", err)
		}
		got = append(got, entry)
	}

	if len(got) != len(entries) {
		t.Fatalf("archived %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i].Phase != entries[i].Phase {
			t.Errorf("entry %d phase = %s, want %s", i, got[i].Phase, entries[i].Phase)
		}
		if got[i].JobID != "job-1" {
			t.Errorf("entry %d job id = %s, want job-1", i, got[i].JobID)
		}
	}
}

func TestFilesystemArchiveCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "routelogs")
	a := NewFilesystemArchive(dir)

	entries := []domain.RouteLogEntry{{JobID: "job-2", Phase: domain.PhaseCancelled}}
	if err := a.Archive(context.Background(), "job-2", entries); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "job-2.jsonl")); err != nil {
		t.Errorf("archive file missing: %v", err)
	}
}
