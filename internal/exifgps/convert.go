// Package exifgps reads GPS tags from photo EXIF metadata and converts
// degrees/minutes/seconds coordinates to signed decimal degrees.
package exifgps

import (
	"log/slog"
	"strings"

	"roadsurvey/internal/models"
)

// Rational is an EXIF RATIONAL value.
type Rational struct {
	Num int64
	Den int64
}

// Float returns the value of r. ok is false for a zero denominator.
func (r Rational) Float() (float64, bool) {
	if r.Den == 0 {
		return 0, false
	}
	return float64(r.Num) / float64(r.Den), true
}

// DMS is a degrees, minutes, seconds triple as stored in GPSLatitude and
// GPSLongitude.
type DMS []Rational

// Tags holds the four GPS tags needed to place a photo.
type Tags struct {
	Lat    DMS
	LatRef string
	Lon    DMS
	LonRef string
}

// ToDecimal converts a DMS triple and its hemisphere reference (N, S, E
// or W) to decimal degrees, negative for S and W. Missing or malformed
// input yields ok == false and a logged warning.
func ToDecimal(dms DMS, ref string) (float64, bool) {
	ref = normalizeRef(ref)
	if len(dms) == 0 || ref == "" {
		slog.Warn("gps conversion skipped: missing coordinate or reference", "components", len(dms), "ref", ref)
		return 0, false
	}
	if len(dms) != 3 {
		slog.Warn("gps conversion failed: expected degrees, minutes, seconds", "components", len(dms))
		return 0, false
	}

	var parts [3]float64
	for i, r := range dms {
		v, ok := r.Float()
		if !ok || v < 0 {
			slog.Warn("gps conversion failed: bad component", "index", i, "num", r.Num, "den", r.Den)
			return 0, false
		}
		parts[i] = v
	}
	decimal := parts[0] + parts[1]/60.0 + parts[2]/3600.0

	switch ref {
	case "N", "E":
		return decimal, true
	case "S", "W":
		return -decimal, true
	default:
		slog.Warn("gps conversion failed: unknown hemisphere reference", "ref", ref)
		return 0, false
	}
}

// FromTags converts both axes. Both must convert for a result.
func FromTags(t Tags) (models.Coordinates, bool) {
	lat, ok := ToDecimal(t.Lat, t.LatRef)
	if !ok {
		return models.Coordinates{}, false
	}
	lon, ok := ToDecimal(t.Lon, t.LonRef)
	if !ok {
		return models.Coordinates{}, false
	}
	slog.Debug("converted gps coordinates", "lat", lat, "lon", lon)
	return models.Coordinates{Lat: lat, Lon: lon}, true
}

// normalizeRef trims EXIF ASCII padding and upper-cases the letter.
func normalizeRef(ref string) string {
	return strings.ToUpper(strings.Trim(ref, " \x00\t\r\n"))
}
