// Package location reverse geocodes survey coordinates through Nominatim.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "roadsurvey/1.0 (road distress survey exporter)"
)

// ErrNotFound is returned when Nominatim has no address for a point.
var ErrNotFound = errors.New("location: no address found")

// Location holds the address of a surveyed point.
type Location struct {
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Road        string  `json:"road,omitempty"`
	Suburb      string  `json:"suburb,omitempty"`
	City        string  `json:"city,omitempty"`
	Postcode    string  `json:"postcode,omitempty"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	Type        string  `json:"type,omitempty"`
	OsmID       string  `json:"osm_id,omitempty"`
}

// NominatimResponse is shaped for the /reverse API response.
type NominatimResponse struct {
	PlaceID     int64   `json:"place_id"`
	Licence     string  `json:"licence"`
	OsmType     string  `json:"osm_type"`
	OsmID       int64   `json:"osm_id"`
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Class       string  `json:"class"`
	Type        string  `json:"type"`
	PlaceRank   int     `json:"place_rank"`
	Importance  float64 `json:"importance"`
	AddressType string  `json:"addresstype"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Error       string  `json:"error"`
	Address     struct {
		Road          string `json:"road"`
		Neighbourhood string `json:"neighbourhood"`
		Suburb        string `json:"suburb"`
		CityDistrict  string `json:"city_district"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		County        string `json:"county"`
		State         string `json:"state"`
		Postcode      string `json:"postcode"`
		Country       string `json:"country"`
		CountryCode   string `json:"country_code"`
	} `json:"address"`
	BoundingBox []string `json:"boundingbox"`
}

// Client calls the Nominatim API at most once per second, per the OSM usage
// policy.
type Client struct {
	baseURL    string
	userAgent  string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customises a Client.
type Option func(*Client)

func WithBaseURL(u string) Option     { return func(c *Client) { c.baseURL = u } }
func WithUserAgent(ua string) Option  { return func(c *Client) { c.userAgent = ua } }
func WithLanguage(lang string) Option { return func(c *Client) { c.language = lang } }

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter replaces the default one request per second limiter.
func WithLimiter(l *rate.Limiter) Option { return func(c *Client) { c.limiter = l } }

// NewClient creates a Nominatim client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		language:   "en",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	return c
}

// Reverse looks up the address at lat/lon.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*Location, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("nominatim rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("zoom", "17")
	if c.language != "" {
		params.Set("accept-language", c.language)
	}

	reqURL := fmt.Sprintf("%s/reverse?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim reverse: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim reverse: unexpected status: %s", resp.Status)
	}

	var result NominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("nominatim reverse: decode: %w", err)
	}
	if result.Error != "" || result.DisplayName == "" {
		return nil, fmt.Errorf("%w at %.6f, %.6f", ErrNotFound, lat, lon)
	}

	return result.toLocation(lat, lon), nil
}

func (r *NominatimResponse) toLocation(lat, lon float64) *Location {
	if v, err := strconv.ParseFloat(r.Lat, 64); err == nil {
		lat = v
	}
	if v, err := strconv.ParseFloat(r.Lon, 64); err == nil {
		lon = v
	}

	city := r.Address.City
	if city == "" {
		city = r.Address.Town
	}
	if city == "" {
		city = r.Address.Village
	}

	loc := &Location{
		DisplayName: r.DisplayName,
		Latitude:    lat,
		Longitude:   lon,
		Road:        r.Address.Road,
		Suburb:      r.Address.Suburb,
		City:        city,
		Postcode:    r.Address.Postcode,
		Country:     r.Address.Country,
		CountryCode: r.Address.CountryCode,
		Type:        r.Type,
	}
	if r.OsmID != 0 {
		loc.OsmID = r.OsmType + "/" + strconv.FormatInt(r.OsmID, 10)
	}
	return loc
}
