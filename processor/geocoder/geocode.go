package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/estatesearch/estatesearch/estate"
)

// forwardResponse is the subset of the Mapbox forward-geocoding response the
// worker reads. Geometry coordinates are GeoJSON [longitude, latitude].
type forwardResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			FullAddress string `json:"full_address"`
		} `json:"properties"`
	} `json:"features"`
}

// Geocoder resolves street addresses to coordinates via the Mapbox forward
// geocoding API.
type Geocoder struct {
	client  *http.Client
	baseURL string
	token   string
	country string
}

// NewGeocoder creates a geocoder against the given endpoint.
func NewGeocoder(client *http.Client, baseURL, token, country string) *Geocoder {
	if client == nil {
		client = http.DefaultClient
	}
	return &Geocoder{client: client, baseURL: baseURL, token: token, country: country}
}

// Geocode resolves one address to coordinates and the provider's canonical
// full address. A well-formed "no match" response is an error so the caller
// reports it as a worker failure.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*estate.Coordinates, string, error) {
	if g.token == "" {
		return nil, "", fmt.Errorf("mapbox token not configured")
	}

	params := url.Values{}
	params.Set("q", address)
	params.Set("access_token", g.token)
	params.Set("limit", "1")
	if g.country != "" {
		params.Set("country", g.country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("geocode %q: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("mapbox geocoding returned %d: %s", resp.StatusCode, body)
	}

	var parsed forwardResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, "", fmt.Errorf("decode geocoding response: %w", err)
	}

	if len(parsed.Features) == 0 {
		return nil, "", fmt.Errorf("no coordinates found for %q", address)
	}
	feature := parsed.Features[0]
	if len(feature.Geometry.Coordinates) < 2 {
		return nil, "", fmt.Errorf("malformed geometry for %q", address)
	}

	coords := &estate.Coordinates{
		Longitude: feature.Geometry.Coordinates[0],
		Latitude:  feature.Geometry.Coordinates[1],
	}
	fullAddress := feature.Properties.FullAddress
	if fullAddress == "" {
		fullAddress = address
	}
	return coords, fullAddress, nil
}
