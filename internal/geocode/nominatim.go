package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/sunny-forecast/internal/weather"
)

// DefaultCountryCodes limits searches to the Alpine countries.
const DefaultCountryCodes = "ch,fr,it,at,de"

// NominatimClient implements Geocoder using the OpenStreetMap Nominatim API.
type NominatimClient struct {
	httpClient   *http.Client
	baseURL      string
	userAgent    string
	countryCodes string
}

// NewNominatimClient creates a Nominatim client. countryCodes is a
// comma-separated ISO 3166-1 list; empty searches worldwide.
func NewNominatimClient(client *http.Client, baseURL, userAgent, countryCodes string) *NominatimClient {
	return &NominatimClient{
		httpClient:   client,
		baseURL:      strings.TrimRight(baseURL, "/"),
		userAgent:    userAgent,
		countryCodes: countryCodes,
	}
}

// Search returns the best match for query.
func (c *NominatimClient) Search(ctx context.Context, query string) (Place, error) {
	params := url.Values{
		"format": {"json"},
		"q":      {query},
		"limit":  {"5"},
	}
	if c.countryCodes != "" {
		params.Set("countrycodes", c.countryCodes)
	}

	var results []nominatimPlace
	if err := c.get(ctx, c.baseURL+"/search?"+params.Encode(), &results); err != nil {
		return Place{}, err
	}
	if len(results) == 0 {
		return Place{}, fmt.Errorf("%w: %q", ErrNotFound, query)
	}

	r := results[0]
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parse latitude %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parse longitude %q: %w", r.Lon, err)
	}
	return Place{
		Coordinates: weather.Coordinates{Lat: lat, Lon: lon},
		DisplayName: r.DisplayName,
	}, nil
}

// Reverse returns the display name for the point.
func (c *NominatimClient) Reverse(ctx context.Context, at weather.Coordinates) (string, error) {
	params := url.Values{
		"format": {"json"},
		"lat":    {strconv.FormatFloat(at.Lat, 'f', 6, 64)},
		"lon":    {strconv.FormatFloat(at.Lon, 'f', 6, 64)},
		"zoom":   {"10"},
	}

	var result struct {
		nominatimPlace
		Error string `json:"error"`
	}
	if err := c.get(ctx, c.baseURL+"/reverse?"+params.Encode(), &result); err != nil {
		return "", err
	}
	if result.Error != "" || result.DisplayName == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, at)
	}
	return result.DisplayName, nil
}

func (c *NominatimClient) get(ctx context.Context, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Nominatim returns coordinates as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
