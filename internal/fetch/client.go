// Package fetch implements the HTTP downloader for public tracking-data
// CSVs (Movebank exports on public S3 buckets). Downloads are context-aware,
// respect a shared rate limiter, and retry on transient errors (429, 5xx).
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/calidris/movetrack/internal/frame"
	"github.com/calidris/movetrack/internal/model"
	"github.com/calidris/movetrack/internal/process"
)

const (
	maxRetries      = 4
	defaultFilename = "migration_data.csv"
)

// Client downloads dataset files over HTTP(S).
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	debug      bool
}

// NewClient creates a Client with the given timeout and request rate.
func NewClient(timeout time.Duration, ratePerSec float64, debug bool) *Client {
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		debug:   debug,
	}
}

// Filename derives the local filename from the URL path, falling back to a
// default when the path does not end in a CSV name. "+"-encoded spaces (as
// S3 object keys often carry) are decoded.
func Filename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultFilename
	}
	name := path.Base(u.Path)
	if unescaped, err := url.QueryUnescape(name); err == nil {
		name = unescaped
	}
	name = strings.ReplaceAll(name, "+", " ")
	if name == "" || name == "." || name == "/" || !strings.HasSuffix(strings.ToLower(name), ".csv") {
		return defaultFilename
	}
	return name
}

// Download fetches rawURL into destDir and returns the local path and byte
// size. Transient upstream failures are retried with exponential backoff;
// anything else surfaces immediately.
func (c *Client) Download(ctx context.Context, rawURL, destDir string) (string, int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating %s: %w", destDir, err)
	}

	if c.debug {
		slog.Debug("fetch request", "url", rawURL)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))*500) * time.Millisecond
			slog.Debug("retrying after backoff", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return "", 0, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return "", 0, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Accept", "text/csv, */*")
		req.Header.Set("User-Agent", "movetrack-cli/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return "", 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		dest := filepath.Join(destDir, Filename(rawURL))
		out, err := os.Create(dest)
		if err != nil {
			resp.Body.Close()
			return "", 0, fmt.Errorf("creating %s: %w", dest, err)
		}
		n, err := io.Copy(out, resp.Body)
		resp.Body.Close()
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", 0, fmt.Errorf("writing %s: %w", dest, err)
		}

		if c.debug {
			slog.Debug("fetch response", "status", resp.StatusCode, "bytes", n, "file", dest)
		}
		return dest, n, nil
	}
	return "", 0, fmt.Errorf("after %d attempts: %w", maxRetries, lastErr)
}

// Summarize profiles a downloaded CSV: shape, column names verbatim,
// individual/species/study cardinalities, timestamp range, and coordinate
// bounds. Absent columns degrade the affected fields rather than failing.
func Summarize(name, rawURL, localPath string, f *frame.Frame) model.DatasetSummary {
	s := model.DatasetSummary{
		Name:         name,
		SourceURL:    rawURL,
		LocalFile:    localPath,
		FetchedAt:    time.Now().UTC(),
		TotalRecords: f.NumRows(),
		TotalColumns: f.NumCols(),
		ColumnNames:  f.Columns(),
	}
	if fi, err := os.Stat(localPath); err == nil {
		s.FileSizeMB = math.Round(float64(fi.Size())/(1024*1024)*100) / 100
	}

	s.UniqueIndividuals = distinct(f, model.ColIndividual)
	s.UniqueSpecies = distinct(f, model.ColTaxon)
	s.Studies = distinct(f, model.ColStudy)

	if col := process.ColumnOrStandardized(f, model.ColTimestamp); col != "" {
		if times, err := f.TimeColumn(col); err == nil {
			var min, max time.Time
			for _, t := range times {
				if t.IsZero() {
					continue
				}
				if min.IsZero() || t.Before(min) {
					min = t
				}
				if max.IsZero() || t.After(max) {
					max = t
				}
			}
			if !min.IsZero() {
				s.DateRange = model.DateRange{
					Start: min.Format("2006-01-02 15:04:05"),
					End:   max.Format("2006-01-02 15:04:05"),
				}
			}
		}
	}

	s.LocationRange = model.LocationRange{
		LatMin: model.Float(math.NaN()), LatMax: model.Float(math.NaN()),
		LonMin: model.Float(math.NaN()), LonMax: model.Float(math.NaN()),
	}
	if lats, ok := numeric(f, model.ColLatitude); ok {
		lo, hi := bounds(lats)
		s.LocationRange.LatMin, s.LocationRange.LatMax = model.Float(lo), model.Float(hi)
	}
	if lons, ok := numeric(f, model.ColLongitude); ok {
		lo, hi := bounds(lons)
		s.LocationRange.LonMin, s.LocationRange.LonMax = model.Float(lo), model.Float(hi)
	}
	return s
}

func distinct(f *frame.Frame, name string) int {
	col := process.ColumnOrStandardized(f, name)
	if col == "" {
		return 0
	}
	vals, err := f.StringColumn(col)
	if err != nil {
		return 0
	}
	seen := make(map[string]bool)
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			seen[v] = true
		}
	}
	return len(seen)
}

func numeric(f *frame.Frame, name string) ([]float64, bool) {
	col := process.ColumnOrStandardized(f, name)
	if col == "" {
		return nil, false
	}
	vals, err := f.Numeric(col)
	if err != nil {
		return nil, false
	}
	return vals, true
}

func bounds(vals []float64) (lo, hi float64) {
	lo, hi = math.NaN(), math.NaN()
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(lo) || v < lo {
			lo = v
		}
		if math.IsNaN(hi) || v > hi {
			hi = v
		}
	}
	return lo, hi
}
