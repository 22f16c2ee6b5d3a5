package location

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

type rewriteRoundTripper struct{ base *url.URL }

func (r rewriteRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	c := new(http.Request)
	*c = *req
	u := *req.URL
	c.URL = &u
	c.URL.Scheme = r.base.Scheme
	c.URL.Host = r.base.Host
	c.Host = r.base.Host
	return http.DefaultTransport.RoundTrip(c)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	u, _ := url.Parse(srv.URL)
	return NewClient(
		WithHTTPClient(&http.Client{Transport: rewriteRoundTripper{base: u}}),
		WithUserAgent("test-agent"),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
}

const dhakaReverse = `{
  "place_id": 1,
  "osm_type": "way",
  "osm_id": 42,
  "lat": "23.8103300",
  "lon": "90.4125200",
  "type": "primary",
  "display_name": "Kazi Nazrul Islam Avenue, Shahbag, Dhaka, 1000, Bangladesh",
  "address": {
    "road": "Kazi Nazrul Islam Avenue",
    "suburb": "Shahbag",
    "city": "Dhaka",
    "postcode": "1000",
    "country": "Bangladesh",
    "country_code": "bd"
  }
}`

func TestClient_Reverse(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCity string
		wantRoad string
		wantErr  bool
		notFound bool
	}{
		{
			name:     "city address",
			status:   http.StatusOK,
			body:     dhakaReverse,
			wantCity: "Dhaka",
			wantRoad: "Kazi Nazrul Islam Avenue",
		},
		{
			name:     "town falls back as city",
			status:   http.StatusOK,
			body:     `{"lat":"24.36","lon":"88.6","display_name":"Puthia, Rajshahi","address":{"town":"Puthia","country":"Bangladesh"}}`,
			wantCity: "Puthia",
		},
		{
			name:     "unable to geocode",
			status:   http.StatusOK,
			body:     `{"error":"Unable to geocode"}`,
			wantErr:  true,
			notFound: true,
		},
		{
			name:    "rate limited upstream",
			status:  http.StatusTooManyRequests,
			body:    `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/reverse" {
					t.Errorf("path = %s, want /reverse", r.URL.Path)
				}
				q := r.URL.Query()
				if q.Get("lat") != "23.810330" || q.Get("lon") != "90.412520" {
					t.Errorf("lat/lon = %s/%s", q.Get("lat"), q.Get("lon"))
				}
				if got := r.Header.Get("User-Agent"); got != "test-agent" {
					t.Errorf("User-Agent = %q", got)
				}
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			got, err := c.Reverse(context.Background(), 23.81033, 90.41252)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if tt.notFound && !errors.Is(err, ErrNotFound) {
					t.Errorf("error = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Reverse returned error: %v", err)
			}
			if got.City != tt.wantCity {
				t.Errorf("City = %s, want %s", got.City, tt.wantCity)
			}
			if got.Road != tt.wantRoad {
				t.Errorf("Road = %s, want %s", got.Road, tt.wantRoad)
			}
		})
	}
}

func TestClient_ReverseOsmID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, dhakaReverse)
	})
	got, err := c.Reverse(context.Background(), 23.81033, 90.41252)
	if err != nil {
		t.Fatal(err)
	}
	if got.OsmID != "way/42" {
		t.Errorf("OsmID = %q, want way/42", got.OsmID)
	}
	if got.Latitude != 23.81033 || got.Longitude != 90.41252 {
		t.Errorf("coords = %v,%v", got.Latitude, got.Longitude)
	}
}

func TestClient_ReverseCanceled(t *testing.T) {
	c := NewClient(WithLimiter(rate.NewLimiter(rate.Every(time.Hour), 0)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Reverse(ctx, 1, 2); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
