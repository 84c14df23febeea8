package report_test

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/calidris/movetrack/internal/model"
	"github.com/calidris/movetrack/internal/report"
)

type trendPayload struct {
	Group string      `json:"group" yaml:"group"`
	Sum   float64     `json:"sum" yaml:"sum"`
	Mean  model.Float `json:"mean" yaml:"mean"`
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func TestWriteJSONTimestampedName(t *testing.T) {
	w := report.NewWriter(filepath.Join(t.TempDir(), "reports"))
	path, err := w.WriteJSON("trends", trendPayload{Group: "A", Sum: 30})
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	name := filepath.Base(path)
	if ok, _ := regexp.MatchString(`^trends_\d{8}_\d{6}\.json$`, name); !ok {
		t.Errorf("filename: expected trends_YYYYMMDD_HHMMSS.json, got %s", name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got trendPayload
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if got.Group != "A" || got.Sum != 30 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if data[len(data)-1] != '\n' {
		t.Error("report should end with a newline")
	}
}

func TestWriteJSONEncodesNaNAsNull(t *testing.T) {
	w := report.NewWriter(t.TempDir())
	path, err := w.WriteJSON("describe", trendPayload{Group: "A", Mean: model.Float(math.NaN())})
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"mean": null`) {
		t.Errorf("NaN should encode as null:\n%s", data)
	}
}

func TestWriteNamedJSON(t *testing.T) {
	w := report.NewWriter(t.TempDir())
	path, err := w.WriteNamedJSON("movebank_data_summary.json", trendPayload{Group: "A"})
	if err != nil {
		t.Fatalf("WriteNamedJSON: %v", err)
	}
	if filepath.Base(path) != "movebank_data_summary.json" {
		t.Errorf("expected fixed filename, got %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("report file missing: %v", err)
	}
}

// ─── YAML ─────────────────────────────────────────────────────────────────────

func TestWriteYAML(t *testing.T) {
	w := report.NewWriter(filepath.Join(t.TempDir(), "reports"))
	path, err := w.WriteYAML("metrics", trendPayload{Group: "B", Sum: 12})
	if err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	if ok, _ := regexp.MatchString(`^metrics_\d{8}_\d{6}\.yaml$`, filepath.Base(path)); !ok {
		t.Errorf("filename: expected metrics_YYYYMMDD_HHMMSS.yaml, got %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got trendPayload
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("report is not valid YAML: %v", err)
	}
	if got.Group != "B" || got.Sum != 12 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

// ─── List ─────────────────────────────────────────────────────────────────────

func TestListMissingDir(t *testing.T) {
	entries, err := report.List(filepath.Join(t.TempDir(), "never-created"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil for a missing directory, got %v", entries)
	}
}

func TestListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"old.json", "mid.yaml", "new.json"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		mt := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, mt, mt); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
	}
	// ignored: wrong extension and a subdirectory
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "figures"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	entries, err := report.List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"new.json", "mid.yaml", "old.json"} {
		if entries[i].Name != want {
			t.Errorf("position %d: expected %s, got %s", i, want, entries[i].Name)
		}
	}
	if entries[0].Bytes != 3 {
		t.Errorf("bytes: expected 3, got %d", entries[0].Bytes)
	}
}
