// Package report writes analysis payloads to timestamped JSON (and
// optionally YAML) files under the reports directory, and lists what has
// been written. Payload types use model.Float for any statistic that can
// be NaN, so reports always encode cleanly with missing values as null.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Writer writes report files into one directory, creating it on demand.
type Writer struct {
	Dir string
}

// NewWriter returns a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir}
}

// timestamp is the second-resolution stamp embedded in report filenames.
// Re-runs within the same second overwrite, last write wins.
func timestamp() string {
	return time.Now().Format("20060102_150405")
}

// WriteJSON writes v as <dir>/<stage>_<YYYYMMDD_HHMMSS>.json and returns
// the path.
func (w *Writer) WriteJSON(stage string, v interface{}) (string, error) {
	path := filepath.Join(w.Dir, fmt.Sprintf("%s_%s.json", stage, timestamp()))
	return path, w.writeJSONFile(path, v)
}

// WriteNamedJSON writes v to a fixed filename under the reports directory,
// used for the canonical fetch summary.
func (w *Writer) WriteNamedJSON(name string, v interface{}) (string, error) {
	path := filepath.Join(w.Dir, name)
	return path, w.writeJSONFile(path, v)
}

func (w *Writer) writeJSONFile(path string, v interface{}) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", w.Dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// WriteYAML writes v as <dir>/<stage>_<YYYYMMDD_HHMMSS>.yaml and returns
// the path.
func (w *Writer) WriteYAML(stage string, v interface{}) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", w.Dir, err)
	}
	path := filepath.Join(w.Dir, fmt.Sprintf("%s_%s.yaml", stage, timestamp()))
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	return path, os.WriteFile(path, data, 0o644)
}

// Entry describes one report file on disk.
type Entry struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Bytes    int64     `json:"bytes"`
	Modified time.Time `json:"modified"`
}

// List returns the report files under dir, newest first. A missing
// directory is an empty list, not an error.
func List(dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var entries []Entry
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:     de.Name(),
			Path:     filepath.Join(dir, de.Name()),
			Bytes:    info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Modified.After(entries[j].Modified) })
	return entries, nil
}
