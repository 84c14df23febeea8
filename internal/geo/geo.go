// Package geo provides great-circle distance and per-individual route
// statistics over GPS fixes.
package geo

import (
	"math"
	"sort"
	"time"

	"github.com/calidris/movetrack/internal/model"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometres between two
// coordinates given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180
	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	dPhi := (lat2 - lat1) * degToRad
	dLambda := (lon2 - lon1) * degToRad

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Route summarises the track of one individual: cumulative path length,
// straight-line displacement, duration, and segment speeds.
type Route struct {
	Individual     string      `json:"individual"`
	Fixes          int         `json:"fixes"`
	Start          time.Time   `json:"start"`
	End            time.Time   `json:"end"`
	TotalKm        model.Float `json:"total_km"`
	DisplacementKm model.Float `json:"displacement_km"`
	DurationDays   model.Float `json:"duration_days"`
	AvgSpeedKmh    model.Float `json:"avg_speed_kmh"`
	MaxSpeedKmh    model.Float `json:"max_speed_kmh"`
}

// SegmentSpeeds returns the speed in km/h of every consecutive pair of
// usable fixes, ordered by timestamp. Pairs with a non-positive time delta
// or a missing coordinate are skipped.
func SegmentSpeeds(recs []model.Record) []float64 {
	sorted := usableSorted(recs)
	var speeds []float64
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		hours := cur.Timestamp.Sub(prev.Timestamp).Hours()
		if hours <= 0 {
			continue
		}
		km := Haversine(prev.Lat, prev.Lon, cur.Lat, cur.Lon)
		speeds = append(speeds, km/hours)
	}
	return speeds
}

// RouteStats computes the route summary for one individual's fixes.
func RouteStats(individual string, recs []model.Record) Route {
	sorted := usableSorted(recs)
	r := Route{
		Individual:     individual,
		Fixes:          len(sorted),
		TotalKm:        model.Float(math.NaN()),
		DisplacementKm: model.Float(math.NaN()),
		DurationDays:   model.Float(math.NaN()),
		AvgSpeedKmh:    model.Float(math.NaN()),
		MaxSpeedKmh:    model.Float(math.NaN()),
	}
	if len(sorted) == 0 {
		return r
	}
	first, last := sorted[0], sorted[len(sorted)-1]
	r.Start = first.Timestamp
	r.End = last.Timestamp

	total := 0.0
	maxSpeed := 0.0
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		km := Haversine(prev.Lat, prev.Lon, cur.Lat, cur.Lon)
		total += km
		if hours := cur.Timestamp.Sub(prev.Timestamp).Hours(); hours > 0 {
			if v := km / hours; v > maxSpeed {
				maxSpeed = v
			}
		}
	}
	r.TotalKm = model.Float(total)
	r.DisplacementKm = model.Float(Haversine(first.Lat, first.Lon, last.Lat, last.Lon))

	days := last.Timestamp.Sub(first.Timestamp).Hours() / 24
	r.DurationDays = model.Float(days)
	if days > 0 {
		r.AvgSpeedKmh = model.Float(total / (days * 24))
		r.MaxSpeedKmh = model.Float(maxSpeed)
	}
	return r
}

// Routes groups records by individual and computes each route, sorted by
// descending path length.
func Routes(recs []model.Record) []Route {
	byInd := make(map[string][]model.Record)
	for _, r := range recs {
		byInd[r.Individual] = append(byInd[r.Individual], r)
	}
	out := make([]Route, 0, len(byInd))
	for ind, rs := range byInd {
		out = append(out, RouteStats(ind, rs))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := float64(out[i].TotalKm), float64(out[j].TotalKm)
		if math.IsNaN(b) {
			return true
		}
		if math.IsNaN(a) {
			return false
		}
		if a != b {
			return a > b
		}
		return out[i].Individual < out[j].Individual
	})
	return out
}

// usableSorted filters to records with a timestamp and a coordinate pair,
// sorted by time.
func usableSorted(recs []model.Record) []model.Record {
	out := make([]model.Record, 0, len(recs))
	for _, r := range recs {
		if !r.Timestamp.IsZero() && r.HasFix() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
