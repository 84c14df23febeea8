// Package model defines the canonical data types used throughout movetrack.
// These types are the single source of truth for migration records, dataset
// metadata, and the result envelope that every command returns.
package model

import (
	"math"
	"strconv"
	"time"
)

// ─── Movebank Schema ──────────────────────────────────────────────────────────

// Expected source column names for Movebank-style export CSVs.
const (
	ColEventID    = "event-id"
	ColTimestamp  = "timestamp"
	ColLongitude  = "location-long"
	ColLatitude   = "location-lat"
	ColIndividual = "individual-local-identifier"
	ColTaxon      = "individual-taxon-canonical-name"
	ColStudy      = "study-name"
	ColSensor     = "sensor-type"
)

// ExpectedColumns lists every column a full Movebank export carries.
// A subset is tolerated; missing ones degrade specific analyses.
var ExpectedColumns = []string{
	ColEventID, ColTimestamp, ColLongitude, ColLatitude,
	ColIndividual, ColTaxon, ColStudy, ColSensor,
}

// RequiredColumns must be present for any analysis path to run.
var RequiredColumns = []string{
	ColTimestamp, ColLatitude, ColLongitude, ColIndividual,
}

// ─── Migration Records ────────────────────────────────────────────────────────

// Record is a single GPS fix for one tracked individual at one timestamp.
// Lat/Lon are NaN when the source cell is empty or unparseable.
type Record struct {
	EventID    int64     `json:"event_id"`
	Timestamp  time.Time `json:"timestamp"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	Individual string    `json:"individual"`
	Taxon      string    `json:"taxon,omitempty"`
	Study      string    `json:"study,omitempty"`
	Sensor     string    `json:"sensor,omitempty"`
}

// HasFix reports whether the record carries a usable coordinate pair.
func (r Record) HasFix() bool {
	return !math.IsNaN(r.Lat) && !math.IsNaN(r.Lon)
}

// ─── JSON-Safe Floats ─────────────────────────────────────────────────────────

// Float is a float64 that marshals NaN and ±Inf as JSON null instead of
// failing the whole encode. Analysis payloads use it for any statistic that
// can be undefined (empty column, zero variance).
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler; null decodes to NaN.
func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// IsMissing returns true when the value is NaN.
func (f Float) IsMissing() bool { return math.IsNaN(float64(f)) }

// ─── Dataset Metadata ─────────────────────────────────────────────────────────

// DateRange is the observed timestamp span of a dataset.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// LocationRange is the observed coordinate bounding box of a dataset.
type LocationRange struct {
	LatMin Float `json:"lat_min"`
	LatMax Float `json:"lat_max"`
	LonMin Float `json:"lon_min"`
	LonMax Float `json:"lon_max"`
}

// DatasetSummary describes one fetched or loaded CSV file.
type DatasetSummary struct {
	Name              string        `json:"name"`
	SourceURL         string        `json:"source_url,omitempty"`
	LocalFile         string        `json:"local_file"`
	FetchedAt         time.Time     `json:"fetched_at"`
	TotalRecords      int           `json:"total_records"`
	TotalColumns      int           `json:"total_columns"`
	ColumnNames       []string      `json:"column_names"`
	FileSizeMB        float64       `json:"file_size_mb"`
	UniqueIndividuals int           `json:"unique_individuals"`
	UniqueSpecies     int           `json:"unique_species"`
	Studies           int           `json:"studies"`
	DateRange         DateRange     `json:"date_range"`
	LocationRange     LocationRange `json:"location_range"`
}

// ─── Result Envelope ──────────────────────────────────────────────────────────

// ResultStats carries size and timing metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Rows       int   `json:"rows"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindDatasetSummary = "dataset_summary"
	KindDescription    = "description"
	KindTrends         = "trends"
	KindCorrelation    = "correlation"
	KindSeasonal       = "seasonal"
	KindMetrics        = "metrics"
	KindOutliers       = "outliers"
	KindClusters       = "clusters"
	KindPCA            = "pca"
	KindRoutes         = "routes"
	KindProcessed      = "processed"
	KindCharts         = "charts"
	KindReports        = "reports"
	KindTable          = "table"
)
