// Package pipeline provides helpers for reading and writing migration
// Record streams via stdin/stdout in JSONL format — the canonical pipe
// format between movetrack commands.
package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/calidris/movetrack/internal/model"
	"github.com/calidris/movetrack/internal/util"
)

// row is the wire shape of one record. Coordinates may be null (missing).
type row struct {
	EventID    int64    `json:"event_id,omitempty"`
	Timestamp  string   `json:"timestamp"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	Individual string   `json:"individual"`
	Taxon      string   `json:"taxon,omitempty"`
	Study      string   `json:"study,omitempty"`
	Sensor     string   `json:"sensor,omitempty"`
}

// ReadRecords reads JSONL records from r (stdin). Each line must be a JSON
// object with at least "timestamp" and "individual" fields; null or absent
// coordinates become missing.
func ReadRecords(r io.Reader) ([]model.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var recs []model.Record
	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		var rec row
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}

		var ts time.Time
		if rec.Timestamp != "" {
			t, err := util.ParseTimestamp(rec.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			ts = t
		}

		out := model.Record{
			EventID:    rec.EventID,
			Timestamp:  ts,
			Lat:        math.NaN(),
			Lon:        math.NaN(),
			Individual: rec.Individual,
			Taxon:      rec.Taxon,
			Study:      rec.Study,
			Sensor:     rec.Sensor,
		}
		if rec.Lat != nil {
			out.Lat = *rec.Lat
		}
		if rec.Lon != nil {
			out.Lon = *rec.Lon
		}
		recs = append(recs, out)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no records read from input (is stdin empty?)")
	}
	return recs, nil
}

// WriteRecords writes records as JSONL to w. NaN coordinates are written
// as null.
func WriteRecords(w io.Writer, recs []model.Record) error {
	enc := json.NewEncoder(w)
	for _, rec := range recs {
		out := row{
			EventID:    rec.EventID,
			Individual: rec.Individual,
			Taxon:      rec.Taxon,
			Study:      rec.Study,
			Sensor:     rec.Sensor,
		}
		if !rec.Timestamp.IsZero() {
			out.Timestamp = rec.Timestamp.UTC().Format("2006-01-02 15:04:05.000")
		}
		if !math.IsNaN(rec.Lat) {
			v := rec.Lat
			out.Lat = &v
		}
		if !math.IsNaN(rec.Lon) {
			v := rec.Lon
			out.Lon = &v
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

// IsTTY returns true if stdout is a terminal (not a pipe).
func IsTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
