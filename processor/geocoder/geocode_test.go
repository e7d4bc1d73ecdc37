package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocodeParsesTopFeature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "101 Main St, Austin", r.URL.Query().Get("q"))
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "US", r.URL.Query().Get("country"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"features": [{
				"geometry": {"coordinates": [-97.7431, 30.2672]},
				"properties": {"full_address": "101 Main St, Austin, Texas 78701, United States"}
			}]
		}`))
	}))
	defer srv.Close()

	g := NewGeocoder(srv.Client(), srv.URL, "tok", "US")
	coords, fullAddress, err := g.Geocode(context.Background(), "101 Main St, Austin")
	require.NoError(t, err)
	assert.Equal(t, -97.7431, coords.Longitude)
	assert.Equal(t, 30.2672, coords.Latitude)
	assert.Equal(t, "101 Main St, Austin, Texas 78701, United States", fullAddress)
}

func TestGeocodeFallsBackToRequestAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"features": [{"geometry": {"coordinates": [-97.74, 30.26]}, "properties": {}}]}`))
	}))
	defer srv.Close()

	g := NewGeocoder(srv.Client(), srv.URL, "tok", "")
	_, fullAddress, err := g.Geocode(context.Background(), "somewhere vague")
	require.NoError(t, err)
	assert.Equal(t, "somewhere vague", fullAddress)
}

func TestGeocodeNoMatchIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"features": []}`))
	}))
	defer srv.Close()

	g := NewGeocoder(srv.Client(), srv.URL, "tok", "US")
	_, _, err := g.Geocode(context.Background(), "1 Nowhere Ln")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no coordinates found")
}

func TestGeocodeHTTPErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGeocoder(srv.Client(), srv.URL, "tok", "US")
	_, _, err := g.Geocode(context.Background(), "101 Main St")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGeocodeRequiresToken(t *testing.T) {
	g := NewGeocoder(nil, "https://example.invalid", "", "US")
	_, _, err := g.Geocode(context.Background(), "101 Main St")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}
