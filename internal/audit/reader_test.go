package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReadSkipsMalformedLines(t *testing.T) {
	input := `{"ts":"2026-02-19T10:30:00Z","action":"item_add","key":"generic:svc/a"}
not json
{"ts":"2026-02-19T10:31:00Z","action":"item_delete","key":"generic:svc/a"}
{"ts":"2026-02-19T10:32:00Z","action":"item_add"`

	entries, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].Action != ActionItemDelete {
		t.Errorf("expected item_delete, got %v", entries[1].Action)
	}
}

func TestReadFileMissing(t *testing.T) {
	entries, offset, err := ReadFile(filepath.Join(t.TempDir(), "nope.log"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entries) != 0 || offset != 0 {
		t.Errorf("expected no entries at offset 0, got %d at %d", len(entries), offset)
	}
}

func TestReadFileOffsetStopsAtLastCompleteLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	complete := `{"ts":"2026-02-19T10:30:00Z","action":"item_add","key":"generic:svc/a"}` + "\n"
	partial := `{"ts":"2026-02-19T10:31:00Z","action":"item_del`
	if err := os.WriteFile(path, []byte(complete+partial), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, offset, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if offset != int64(len(complete)) {
		t.Errorf("expected offset %d, got %d", len(complete), offset)
	}

	// Entries appended after the read are picked up from the returned offset.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	f.WriteString(`ete","key":"generic:svc/a"}` + "\n")
	f.Close()

	var got []Action
	if _, err := readFrom(path, offset, func(e Entry) { got = append(got, e.Action) }); err != nil {
		t.Fatalf("readFrom: %v", err)
	}
	if len(got) != 1 || got[0] != ActionItemDelete {
		t.Errorf("expected [item_delete], got %v", got)
	}
}

func TestReadFromOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()

	l.Log(Entry{Action: ActionItemAdd, Key: "first"})
	info, _ := os.Stat(path)
	l.Log(Entry{Action: ActionItemAdd, Key: "second"})

	var got []string
	next, err := readFrom(path, info.Size(), func(e Entry) { got = append(got, e.Key) })
	if err != nil {
		t.Fatalf("readFrom: %v", err)
	}
	if len(got) != 1 || got[0] != "second" {
		t.Errorf("expected [second], got %v", got)
	}
	final, _ := os.Stat(path)
	if next != final.Size() {
		t.Errorf("expected offset %d, got %d", final.Size(), next)
	}
}

func TestFollowDeliversAppendedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	defer l.Close()
	l.Log(Entry{Action: ActionItemAdd, Key: "existing"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	got := make(chan Entry, 4)
	done := make(chan error, 1)
	go func() { done <- Follow(ctx, path, 0, func(e Entry) { got <- e }) }()

	select {
	case e := <-got:
		if e.Key != "existing" {
			t.Fatalf("expected existing entry first, got %q", e.Key)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for existing entry")
	}

	l.Log(Entry{Action: ActionSecretRead, Key: "appended"})

	select {
	case e := <-got:
		if e.Key != "appended" || e.Action != ActionSecretRead {
			t.Errorf("unexpected entry %+v", e)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for appended entry")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Follow returned %v", err)
	}
}
