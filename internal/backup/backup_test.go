package backup

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/topika/internal/content"
)

func newTestService(t *testing.T, max int) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	svc, err := NewService(dir, max, nil)
	if err != nil {
		t.Fatalf("NewService error = %v", err)
	}
	return svc, dir
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

var someRecords = []content.Record{
	{"id": "a", "type": "dialogue", "topic": "인사"},
	{"id": "b", "type": "lecture", "topic": "역사"},
}

// --- Automatic Backup Tests ---

func TestAuto_OncePerDay(t *testing.T) {
	svc, dir := newTestService(t, 30)
	svc.WithClock(fixedClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))

	first, err := svc.Auto(someRecords)
	if err != nil {
		t.Fatalf("Auto error = %v", err)
	}
	if first == "" {
		t.Fatal("first Auto returned no path")
	}
	if !strings.HasPrefix(filepath.Base(first), "auto_backup_20250601_") {
		t.Errorf("filename = %q, want auto_backup_20250601_ prefix", filepath.Base(first))
	}

	// Later the same day: skipped.
	svc.WithClock(fixedClock(time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC)))
	second, err := svc.Auto(someRecords)
	if err != nil {
		t.Fatalf("second Auto error = %v", err)
	}
	if second != "" {
		t.Errorf("second Auto = %q, want skip", second)
	}

	// Next day: a new snapshot.
	svc.WithClock(fixedClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)))
	third, err := svc.Auto(someRecords)
	if err != nil {
		t.Fatalf("third Auto error = %v", err)
	}
	if third == "" {
		t.Error("next-day Auto skipped, want new snapshot")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("snapshot count = %d, want 2", len(entries))
	}
}

func TestAuto_PrunesOldest(t *testing.T) {
	svc, dir := newTestService(t, 3)

	// Five distinct days, with spread modification times so age ordering
	// is unambiguous.
	for day := 1; day <= 5; day++ {
		svc.WithClock(fixedClock(time.Date(2025, 6, day, 9, 0, 0, 0, time.UTC)))
		path, err := svc.Auto(someRecords)
		if err != nil {
			t.Fatalf("Auto day %d error = %v", day, err)
		}
		mtime := time.Date(2025, 6, day, 9, 0, 0, 0, time.UTC)
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	entries, _ := os.ReadDir(dir)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) != 3 {
		t.Fatalf("snapshots = %v, want the 3 newest", names)
	}
	for _, gone := range []string{"auto_backup_20250601_090000.json", "auto_backup_20250602_090000.json"} {
		for _, n := range names {
			if n == gone {
				t.Errorf("oldest snapshot %s survived pruning", gone)
			}
		}
	}
}

func TestPrune_ManualExempt(t *testing.T) {
	svc, dir := newTestService(t, 1)

	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		svc.WithClock(fixedClock(ts.Add(time.Duration(i) * time.Second)))
		if _, err := svc.Manual(someRecords); err != nil {
			t.Fatalf("Manual error = %v", err)
		}
	}
	// The automatic snapshot triggers pruning but manuals are untouched.
	svc.WithClock(fixedClock(ts))
	if _, err := svc.Auto(someRecords); err != nil {
		t.Fatal(err)
	}

	entries, _ := os.ReadDir(dir)
	manuals := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "manual_backup_") {
			manuals++
		}
	}
	if manuals != 3 {
		t.Errorf("manual snapshots = %d, want all 3 kept", manuals)
	}
}

// --- Manual Backup Tests ---

func TestManual_AlwaysWrites(t *testing.T) {
	svc, dir := newTestService(t, 30)
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	svc.WithClock(fixedClock(ts))
	if _, err := svc.Manual(someRecords); err != nil {
		t.Fatal(err)
	}
	svc.WithClock(fixedClock(ts.Add(time.Second)))
	if _, err := svc.Manual(someRecords); err != nil {
		t.Fatal(err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("snapshots = %d, want 2 (no once-per-day rule for manual)", len(entries))
	}
}

// --- Listing Tests ---

func TestList(t *testing.T) {
	svc, dir := newTestService(t, 30)
	svc.WithClock(fixedClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))
	autoPath, err := svc.Auto(someRecords)
	if err != nil {
		t.Fatal(err)
	}
	manualPath, err := svc.Manual(someRecords)
	if err != nil {
		t.Fatal(err)
	}

	// Make the manual snapshot unambiguously newer.
	newer := time.Now().Add(time.Hour)
	if err := os.Chtimes(manualPath, newer, newer); err != nil {
		t.Fatal(err)
	}
	older := time.Now().Add(-time.Hour)
	if err := os.Chtimes(autoPath, older, older); err != nil {
		t.Fatal(err)
	}

	// A stray non-backup file is ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	infos, err := svc.List()
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("List = %d entries, want 2", len(infos))
	}
	if infos[0].Kind != "manual" || infos[1].Kind != "auto" {
		t.Errorf("order = [%s, %s], want newest (manual) first", infos[0].Kind, infos[1].Kind)
	}
	for _, info := range infos {
		if info.ItemCount != len(someRecords) {
			t.Errorf("%s ItemCount = %d, want %d", info.Filename, info.ItemCount, len(someRecords))
		}
		if info.SizeKB <= 0 {
			t.Errorf("%s SizeKB = %v, want > 0", info.Filename, info.SizeKB)
		}
	}
}

func TestList_CorruptSnapshotDegrades(t *testing.T) {
	svc, dir := newTestService(t, 30)
	path := filepath.Join(dir, "manual_backup_20250601_090000.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	infos, err := svc.List()
	if err != nil {
		t.Fatalf("List error = %v, corruption must not fail the listing", err)
	}
	if len(infos) != 1 {
		t.Fatalf("List = %d entries, want 1", len(infos))
	}
	if infos[0].ItemCount != UnparseableCount {
		t.Errorf("ItemCount = %d, want UnparseableCount", infos[0].ItemCount)
	}
}

// --- Resolve and Read Tests ---

func TestResolve_RejectsPathEscape(t *testing.T) {
	svc, _ := newTestService(t, 30)
	for _, name := range []string{"", "../content.json", "a/b.json"} {
		if _, err := svc.Resolve(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Resolve(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestResolve_MissingFile(t *testing.T) {
	svc, _ := newTestService(t, 30)
	if _, err := svc.Resolve("manual_backup_19700101_000000.json"); err == nil {
		t.Error("Resolve(missing) = nil error, want failure")
	}
}

func TestRead(t *testing.T) {
	svc, _ := newTestService(t, 30)
	svc.WithClock(fixedClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)))
	path, err := svc.Manual(someRecords)
	if err != nil {
		t.Fatal(err)
	}

	records, err := svc.Read(filepath.Base(path))
	if err != nil {
		t.Fatalf("Read error = %v", err)
	}
	if len(records) != len(someRecords) {
		t.Errorf("records = %d, want %d", len(records), len(someRecords))
	}
}
