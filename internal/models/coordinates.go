package models

// Coordinates is a decimal-degree point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location sources for GPSCoords.Source.
const (
	SourceEXIF   = "exif"
	SourceDevice = "device"
)

// GPSCoords is the location attached to a survey response. Latitude and
// Longitude stay nil when no fix could be obtained.
type GPSCoords struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// NewGPSCoords builds a located GPSCoords from c.
func NewGPSCoords(c Coordinates, source string) *GPSCoords {
	lat, lon := c.Lat, c.Lon
	return &GPSCoords{Latitude: &lat, Longitude: &lon, Source: source}
}

// Point returns the coordinates and whether both axes are set.
func (g *GPSCoords) Point() (Coordinates, bool) {
	if g == nil || g.Latitude == nil || g.Longitude == nil {
		return Coordinates{}, false
	}
	return Coordinates{Lat: *g.Latitude, Lon: *g.Longitude}, true
}
