package localdiscovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/estatesearch/estatesearch/estate"
)

// defaultCategories are the place categories searched near every property.
var defaultCategories = []string{
	"school",
	"hospital",
	"grocery",
	"restaurant",
	"park",
	"transit_station",
	"cafe",
	"gym",
}

// categoryResponse is the subset of the Mapbox Search Box category response
// the worker reads.
type categoryResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Name           string  `json:"name"`
			FullAddress    string  `json:"full_address"`
			PlaceFormatted string  `json:"place_formatted"`
			Distance       float64 `json:"distance"`
		} `json:"properties"`
	} `json:"features"`
}

// Finder searches points of interest near a coordinate through the Mapbox
// Search Box category API, one call per category.
type Finder struct {
	client           *http.Client
	baseURL          string
	token            string
	categories       []string
	limitPerCategory int
	logger           *slog.Logger
}

// NewFinder creates a POI finder against the given endpoint.
func NewFinder(client *http.Client, baseURL, token string, categories []string, limitPerCategory int, logger *slog.Logger) *Finder {
	if client == nil {
		client = http.DefaultClient
	}
	if len(categories) == 0 {
		categories = defaultCategories
	}
	if limitPerCategory <= 0 {
		limitPerCategory = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{
		client:           client,
		baseURL:          baseURL,
		token:            token,
		categories:       categories,
		limitPerCategory: limitPerCategory,
		logger:           logger,
	}
}

// Search collects POIs near the coordinate across all categories. A failing
// category is skipped; an error is returned only when the token is missing
// or the context ends.
func (f *Finder) Search(ctx context.Context, coords estate.Coordinates) ([]estate.POI, error) {
	if f.token == "" {
		return nil, fmt.Errorf("mapbox token not configured")
	}

	var pois []estate.POI
	for _, category := range f.categories {
		if ctx.Err() != nil {
			return pois, ctx.Err()
		}
		found, err := f.searchCategory(ctx, category, coords)
		if err != nil {
			f.logger.Warn("Category search failed, skipping", "category", category, "error", err)
			continue
		}
		pois = append(pois, found...)
	}
	return pois, nil
}

func (f *Finder) searchCategory(ctx context.Context, category string, coords estate.Coordinates) ([]estate.POI, error) {
	params := url.Values{}
	params.Set("access_token", f.token)
	params.Set("proximity", fmt.Sprintf("%g,%g", coords.Longitude, coords.Latitude))
	params.Set("limit", strconv.Itoa(f.limitPerCategory))
	params.Set("language", "en")

	endpoint := fmt.Sprintf("%s/%s?%s", f.baseURL, url.PathEscape(category), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", category, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search box returned %d for %s", resp.StatusCode, category)
	}

	var parsed categoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", category, err)
	}

	pois := make([]estate.POI, 0, len(parsed.Features))
	for _, feature := range parsed.Features {
		if len(feature.Geometry.Coordinates) < 2 {
			continue
		}
		name := feature.Properties.Name
		if name == "" {
			name = "Unknown"
		}
		address := feature.Properties.FullAddress
		if address == "" {
			address = feature.Properties.PlaceFormatted
		}
		pois = append(pois, estate.POI{
			Name:           name,
			Category:       category,
			Address:        address,
			DistanceMeters: feature.Properties.Distance,
		})
	}
	return pois, nil
}
