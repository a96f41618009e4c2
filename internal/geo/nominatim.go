package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type Point struct {
	Lat float64
	Lon float64
}

// Client resolves a free-text city via the Nominatim search API. Single
// attempt, best-effort: no match is (nil, nil), not an error.
type Client struct {
	HTTP      *http.Client
	BaseURL   string
	UserAgent string // Nominatim usage policy requires an identifying UA
}

func NewClient(userAgent string) *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: 10 * time.Second},
		BaseURL:   "https://nominatim.openstreetmap.org",
		UserAgent: userAgent,
	}
}

func (c *Client) Locate(ctx context.Context, city string) (*Point, error) {
	u := fmt.Sprintf("%s/search?city=%s&format=json&limit=1", c.BaseURL, url.QueryEscape(city))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim: status %d", resp.StatusCode)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: bad lat %q", results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: bad lon %q", results[0].Lon)
	}
	return &Point{Lat: lat, Lon: lon}, nil
}
