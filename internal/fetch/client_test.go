package fetch

import (
	"context"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/calidris/movetrack/internal/frame"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

const testCSV = "event-id,timestamp,location-long,location-lat,individual-local-identifier\n" +
	"1,2021-03-01 00:00:00.000,13.405,52.52,T1\n" +
	"2,2021-03-02 00:00:00.000,2.3522,48.8566,T1\n"

// mockedClient returns a Client whose transport is intercepted by httpmock.
func mockedClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient(10*time.Second, 100, false)
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

// ─── Filename ─────────────────────────────────────────────────────────────────

func TestFilename(t *testing.T) {
	tests := []struct {
		url, want string
	}{
		{"https://bucket.s3.amazonaws.com/migration_original.csv", "migration_original.csv"},
		{"https://bucket.s3.amazonaws.com/Arctic+Tern+Tracks.csv", "Arctic Tern Tracks.csv"},
		{"https://bucket.s3.amazonaws.com/Arctic%20Tern.csv", "Arctic Tern.csv"},
		{"https://example.com/data.CSV", "data.CSV"},
		{"https://example.com/download", defaultFilename},
		{"https://example.com/", defaultFilename},
		{"https://example.com", defaultFilename},
		{"://not a url", defaultFilename},
	}
	for _, tt := range tests {
		if got := Filename(tt.url); got != tt.want {
			t.Errorf("Filename(%q): expected %q, got %q", tt.url, tt.want, got)
		}
	}
}

// ─── Download ─────────────────────────────────────────────────────────────────

func TestDownloadWritesFile(t *testing.T) {
	c := mockedClient(t)
	url := "https://example.com/tracks.csv"
	httpmock.RegisterResponder(http.MethodGet, url,
		httpmock.NewStringResponder(http.StatusOK, testCSV))

	dir := t.TempDir()
	dest, n, err := c.Download(context.Background(), url, dir)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if filepath.Base(dest) != "tracks.csv" {
		t.Errorf("dest: expected tracks.csv, got %s", dest)
	}
	if n != int64(len(testCSV)) {
		t.Errorf("bytes: expected %d, got %d", len(testCSV), n)
	}
	body, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(body) != testCSV {
		t.Errorf("file contents differ from response body")
	}
	if got := httpmock.GetTotalCallCount(); got != 1 {
		t.Errorf("calls: expected 1, got %d", got)
	}
}

func TestDownloadSetsHeaders(t *testing.T) {
	c := mockedClient(t)
	url := "https://example.com/tracks.csv"
	var gotUA, gotAccept string
	httpmock.RegisterResponder(http.MethodGet, url,
		func(req *http.Request) (*http.Response, error) {
			gotUA = req.Header.Get("User-Agent")
			gotAccept = req.Header.Get("Accept")
			return httpmock.NewStringResponse(http.StatusOK, testCSV), nil
		})

	if _, _, err := c.Download(context.Background(), url, t.TempDir()); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if gotUA != "movetrack-cli/1.0" {
		t.Errorf("User-Agent: got %q", gotUA)
	}
	if !strings.Contains(gotAccept, "text/csv") {
		t.Errorf("Accept: got %q", gotAccept)
	}
}

func TestDownloadRetriesTransientErrors(t *testing.T) {
	c := mockedClient(t)
	url := "https://example.com/tracks.csv"
	calls := 0
	httpmock.RegisterResponder(http.MethodGet, url,
		func(*http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(http.StatusServiceUnavailable, "busy"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, testCSV), nil
		})

	dest, n, err := c.Download(context.Background(), url, t.TempDir())
	if err != nil {
		t.Fatalf("Download should recover after one 503: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: expected 2, got %d", calls)
	}
	if n != int64(len(testCSV)) {
		t.Errorf("bytes: expected %d, got %d", len(testCSV), n)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("downloaded file missing: %v", err)
	}
}

func TestDownloadGivesUpAfterMaxRetries(t *testing.T) {
	c := mockedClient(t)
	url := "https://example.com/tracks.csv"
	httpmock.RegisterResponder(http.MethodGet, url,
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	_, _, err := c.Download(context.Background(), url, t.TempDir())
	if err == nil {
		t.Fatal("expected error after persistent 500s")
	}
	if !strings.Contains(err.Error(), "HTTP 500") {
		t.Errorf("error should carry the status: %v", err)
	}
	if got := httpmock.GetTotalCallCount(); got != maxRetries {
		t.Errorf("calls: expected %d, got %d", maxRetries, got)
	}
}

func TestDownloadFailsFastOnClientError(t *testing.T) {
	c := mockedClient(t)
	url := "https://example.com/missing.csv"
	httpmock.RegisterResponder(http.MethodGet, url,
		httpmock.NewStringResponder(http.StatusNotFound, "no such key"))

	_, _, err := c.Download(context.Background(), url, t.TempDir())
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("error should carry the status: %v", err)
	}
	if got := httpmock.GetTotalCallCount(); got != 1 {
		t.Errorf("404 should not be retried: %d calls", got)
	}
}

func TestDownloadCancelledContext(t *testing.T) {
	c := mockedClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := c.Download(ctx, "https://example.com/tracks.csv", t.TempDir()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

// ─── Summarize ────────────────────────────────────────────────────────────────

func TestSummarize(t *testing.T) {
	csv := "event-id,timestamp,location-long,location-lat," +
		"individual-local-identifier,individual-taxon-canonical-name,study-name\n" +
		"1,2021-03-01 00:00:00.000,13.405,52.52,T1,Sterna paradisaea,Arctic Terns\n" +
		"2,2021-03-02 00:00:00.000,2.3522,48.8566,T1,Sterna paradisaea,Arctic Terns\n" +
		"3,2021-03-03 00:00:00.000,31.24,30.04,T2,Ciconia ciconia,Arctic Terns\n"

	path := filepath.Join(t.TempDir(), "tracks.csv")
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := frame.ReadCSVFile(path, 0)
	if err != nil {
		t.Fatalf("ReadCSVFile: %v", err)
	}

	s := Summarize("terns", "https://example.com/tracks.csv", path, f)
	if s.TotalRecords != 3 || s.TotalColumns != 7 {
		t.Errorf("shape: expected 3x7, got %dx%d", s.TotalRecords, s.TotalColumns)
	}
	if s.ColumnNames[3] != "location-lat" {
		t.Errorf("column names not verbatim: %v", s.ColumnNames)
	}
	if s.UniqueIndividuals != 2 {
		t.Errorf("individuals: expected 2, got %d", s.UniqueIndividuals)
	}
	if s.UniqueSpecies != 2 {
		t.Errorf("species: expected 2, got %d", s.UniqueSpecies)
	}
	if s.Studies != 1 {
		t.Errorf("studies: expected 1, got %d", s.Studies)
	}
	if s.DateRange.Start != "2021-03-01 00:00:00" || s.DateRange.End != "2021-03-03 00:00:00" {
		t.Errorf("date range: got %+v", s.DateRange)
	}
	if float64(s.LocationRange.LatMin) != 30.04 || float64(s.LocationRange.LatMax) != 52.52 {
		t.Errorf("lat range: got %+v", s.LocationRange)
	}
	if float64(s.LocationRange.LonMin) != 2.3522 || float64(s.LocationRange.LonMax) != 31.24 {
		t.Errorf("lon range: got %+v", s.LocationRange)
	}
	if s.FileSizeMB < 0 {
		t.Errorf("file size: got %g", s.FileSizeMB)
	}
}

func TestSummarizeDegradesWithoutColumns(t *testing.T) {
	f, err := frame.ReadCSV(strings.NewReader("a,b\n1,2\n"), 0)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	s := Summarize("bare", "", "/nonexistent/file.csv", f)
	if s.UniqueIndividuals != 0 || s.UniqueSpecies != 0 || s.Studies != 0 {
		t.Errorf("cardinalities without columns: %+v", s)
	}
	if s.DateRange.Start != "" {
		t.Errorf("date range without timestamps: %+v", s.DateRange)
	}
	if !math.IsNaN(float64(s.LocationRange.LatMin)) {
		t.Errorf("lat min without coordinates should be NaN: %+v", s.LocationRange)
	}
}
