package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/calidris/movetrack/internal/model"
	"github.com/calidris/movetrack/internal/store"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// testDB opens a store in a temp directory and closes it with the test.
func testDB(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "catalog", "movetrack.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func summary(name string, records int) model.DatasetSummary {
	return model.DatasetSummary{
		Name:         name,
		LocalFile:    "/data/" + name + ".csv",
		FetchedAt:    time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC),
		TotalRecords: records,
	}
}

// ─── Datasets ─────────────────────────────────────────────────────────────────

func TestDatasetRoundTrip(t *testing.T) {
	s := testDB(t)
	want := summary("terns", 1200)
	if err := s.PutDataset(want); err != nil {
		t.Fatalf("PutDataset: %v", err)
	}

	got, ok, err := s.GetDataset("terns")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if !ok {
		t.Fatal("dataset not found after put")
	}
	if got.Name != want.Name || got.TotalRecords != want.TotalRecords || got.LocalFile != want.LocalFile {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.FetchedAt.Equal(want.FetchedAt) {
		t.Errorf("fetched_at mismatch: %v", got.FetchedAt)
	}
}

func TestDatasetMissing(t *testing.T) {
	s := testDB(t)
	_, ok, err := s.GetDataset("nope")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if ok {
		t.Error("expected not found")
	}
}

func TestPutDatasetRejectsEmptyName(t *testing.T) {
	s := testDB(t)
	if err := s.PutDataset(model.DatasetSummary{}); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestListDatasetsSortedByName(t *testing.T) {
	s := testDB(t)
	for _, name := range []string{"storks", "terns", "cranes"} {
		if err := s.PutDataset(summary(name, 1)); err != nil {
			t.Fatalf("PutDataset(%s): %v", name, err)
		}
	}
	sums, err := s.ListDatasets()
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(sums) != 3 {
		t.Fatalf("expected 3 datasets, got %d", len(sums))
	}
	for i, want := range []string{"cranes", "storks", "terns"} {
		if sums[i].Name != want {
			t.Errorf("position %d: expected %s, got %s", i, want, sums[i].Name)
		}
	}
}

func TestDeleteDataset(t *testing.T) {
	s := testDB(t)
	if err := s.PutDataset(summary("terns", 1)); err != nil {
		t.Fatalf("PutDataset: %v", err)
	}
	if err := s.DeleteDataset("terns"); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}
	if _, ok, _ := s.GetDataset("terns"); ok {
		t.Error("dataset still present after delete")
	}
}

// ─── Reports ──────────────────────────────────────────────────────────────────

func TestReportRoundTripAndOrder(t *testing.T) {
	s := testDB(t)
	base := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r-old", "r-mid", "r-new"} {
		rep := store.ReportMeta{
			ID:        id,
			Kind:      "trends",
			Path:      "/reports/" + id + ".json",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.PutReport(rep); err != nil {
			t.Fatalf("PutReport(%s): %v", id, err)
		}
	}

	got, ok, err := s.GetReport("r-mid")
	if err != nil || !ok {
		t.Fatalf("GetReport: ok=%v err=%v", ok, err)
	}
	if got.Kind != "trends" || got.Path != "/reports/r-mid.json" {
		t.Errorf("round trip mismatch: %+v", got)
	}

	reps, err := s.ListReports()
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reps) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reps))
	}
	// newest first
	for i, want := range []string{"r-new", "r-mid", "r-old"} {
		if reps[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, reps[i].ID)
		}
	}
}

func TestPutReportRejectsEmptyID(t *testing.T) {
	s := testDB(t)
	if err := s.PutReport(store.ReportMeta{Kind: "trends"}); err == nil {
		t.Error("expected error for empty ID")
	}
}

// ─── Snapshots ────────────────────────────────────────────────────────────────

func TestSnapshotRoundTrip(t *testing.T) {
	s := testDB(t)
	snap := store.Snapshot{
		ID:          "20210301120000abcd",
		Name:        "spring-run",
		CommandLine: "analyze trends data.csv --group origin",
		CreatedAt:   time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := s.PutSnapshot(snap); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	got, ok, err := s.GetSnapshot(snap.ID)
	if err != nil || !ok {
		t.Fatalf("GetSnapshot: ok=%v err=%v", ok, err)
	}
	if got.Name != snap.Name || got.CommandLine != snap.CommandLine {
		t.Errorf("round trip mismatch: %+v", got)
	}

	snaps, err := s.ListSnapshots()
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].ID != snap.ID {
		t.Errorf("list: %+v", snaps)
	}

	if err := s.DeleteSnapshot(snap.ID); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	if _, ok, _ := s.GetSnapshot(snap.ID); ok {
		t.Error("snapshot still present after delete")
	}
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

func TestStats(t *testing.T) {
	s := testDB(t)
	if err := s.PutDataset(summary("terns", 1)); err != nil {
		t.Fatalf("PutDataset: %v", err)
	}
	if err := s.PutSnapshot(store.Snapshot{ID: "x", Name: "n", CommandLine: "version"}); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(stats))
	}
	byName := make(map[string]store.BucketStats)
	for _, b := range stats {
		byName[b.Name] = b
	}
	if byName["datasets"].Count != 1 || byName["snapshots"].Count != 1 || byName["reports"].Count != 0 {
		t.Errorf("counts wrong: %+v", stats)
	}
	if byName["datasets"].Bytes <= 0 {
		t.Errorf("datasets bucket should have bytes: %+v", byName["datasets"])
	}
	// stats come back sorted
	if stats[0].Name != "datasets" || stats[2].Name != "snapshots" {
		t.Errorf("not sorted by name: %+v", stats)
	}
}

func TestClearBucket(t *testing.T) {
	s := testDB(t)
	if err := s.PutDataset(summary("terns", 1)); err != nil {
		t.Fatalf("PutDataset: %v", err)
	}
	if err := s.PutReport(store.ReportMeta{ID: "r1", Kind: "trends"}); err != nil {
		t.Fatalf("PutReport: %v", err)
	}

	if err := s.ClearBucket("datasets"); err != nil {
		t.Fatalf("ClearBucket: %v", err)
	}
	if _, ok, _ := s.GetDataset("terns"); ok {
		t.Error("dataset survived clear")
	}
	if _, ok, _ := s.GetReport("r1"); !ok {
		t.Error("report lost to an unrelated clear")
	}

	// bucket is recreated and usable
	if err := s.PutDataset(summary("cranes", 1)); err != nil {
		t.Errorf("PutDataset after clear: %v", err)
	}
}

func TestClearAll(t *testing.T) {
	s := testDB(t)
	if err := s.PutDataset(summary("terns", 1)); err != nil {
		t.Fatalf("PutDataset: %v", err)
	}
	if err := s.PutReport(store.ReportMeta{ID: "r1", Kind: "trends"}); err != nil {
		t.Fatalf("PutReport: %v", err)
	}
	if err := s.PutSnapshot(store.Snapshot{ID: "x", Name: "n", CommandLine: "version"}); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	for _, b := range stats {
		if b.Count != 0 {
			t.Errorf("bucket %s not empty after ClearAll: %d entries", b.Name, b.Count)
		}
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movetrack.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.PutDataset(summary("terns", 7)); err != nil {
		t.Fatalf("PutDataset: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, ok, err := s2.GetDataset("terns")
	if err != nil || !ok {
		t.Fatalf("GetDataset after reopen: ok=%v err=%v", ok, err)
	}
	if got.TotalRecords != 7 {
		t.Errorf("records: expected 7, got %d", got.TotalRecords)
	}
}
