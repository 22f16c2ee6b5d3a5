package imghost

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultImgBBEndpoint = "https://api.imgbb.com/1/upload"
	DefaultUserAgent     = "roadsurvey/1.0"
)

// ImgBB uploads photos through the ImgBB API.
type ImgBB struct {
	endpoint   string
	apiKey     string
	expiration time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// ImgBBOption customises an ImgBB client.
type ImgBBOption func(*ImgBB)

// WithEndpoint overrides the upload URL.
func WithEndpoint(endpoint string) ImgBBOption {
	return func(c *ImgBB) { c.endpoint = endpoint }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ImgBBOption {
	return func(c *ImgBB) { c.httpClient = hc }
}

// WithRateLimit sets the sustained request rate and burst.
func WithRateLimit(rps float64, burst int) ImgBBOption {
	return func(c *ImgBB) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithExpiration asks ImgBB to delete the image after d (60s to 180 days).
func WithExpiration(d time.Duration) ImgBBOption {
	return func(c *ImgBB) { c.expiration = d }
}

// NewImgBB creates a client authenticating with apiKey.
func NewImgBB(apiKey string, opts ...ImgBBOption) *ImgBB {
	c := &ImgBB{
		endpoint:   DefaultImgBBEndpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 2),
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type imgbbResponse struct {
	Data struct {
		ID         string `json:"id"`
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
		DeleteURL  string `json:"delete_url"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Error   struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Upload posts the base64-encoded photo and returns the hosted URL.
func (c *ImgBB) Upload(ctx context.Context, p Photo) (string, error) {
	if c.apiKey == "" {
		return "", ErrDisabled
	}
	if len(p.Data) == 0 {
		return "", ErrEmpty
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("imgbb rate limit: %w", err)
	}

	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("image", base64.StdEncoding.EncodeToString(p.Data))
	if name := strings.TrimSuffix(filepath.Base(p.FileName), filepath.Ext(p.FileName)); name != "" && name != "." {
		form.Set("name", name)
	}
	if c.expiration > 0 {
		form.Set("expiration", strconv.Itoa(int(c.expiration.Seconds())))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("imgbb upload: %w", err)
	}
	defer resp.Body.Close()

	var body imgbbResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && body.Error.Message != "" {
			return "", fmt.Errorf("imgbb upload: unexpected status %s: %s", resp.Status, body.Error.Message)
		}
		return "", fmt.Errorf("imgbb upload: unexpected status %s", resp.Status)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("imgbb upload: decode response: %w", decodeErr)
	}
	if !body.Success || body.Data.URL == "" {
		return "", errors.New("imgbb upload: response carried no url")
	}
	return body.Data.URL, nil
}
