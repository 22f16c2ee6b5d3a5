// Package geo has small helpers for decimal-degree coordinates.
package geo

import (
	"fmt"
	"math"
)

// Valid reports whether lat/lon is a finite point on the globe.
func Valid(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// FormatDegrees renders a single axis with six decimals.
func FormatDegrees(v float64) string {
	return fmt.Sprintf("%.6f", v)
}

// Format renders "lat, lon" with six decimals.
func Format(lat, lon float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}

// OSMURL returns an OpenStreetMap permalink centred on the point.
func OSMURL(lat, lon float64) string {
	return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%.6f&mlon=%.6f#map=17/%.6f/%.6f", lat, lon, lat, lon)
}
