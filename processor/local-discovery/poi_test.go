package localdiscovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatesearch/estatesearch/estate"
)

func TestSearchCollectsAcrossCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		category := strings.TrimPrefix(r.URL.Path, "/")
		assert.Equal(t, "-97.74,30.26", r.URL.Query().Get("proximity"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))

		fmt.Fprintf(w, `{
			"features": [{
				"geometry": {"coordinates": [-97.75, 30.27]},
				"properties": {
					"name": "Best %s",
					"full_address": "500 Congress Ave",
					"distance": 812
				}
			}]
		}`, category)
	}))
	defer srv.Close()

	f := NewFinder(srv.Client(), srv.URL, "tok", []string{"school", "park"}, 2, nil)
	pois, err := f.Search(context.Background(), estate.Coordinates{Longitude: -97.74, Latitude: 30.26})
	require.NoError(t, err)
	require.Len(t, pois, 2)
	assert.Equal(t, "Best school", pois[0].Name)
	assert.Equal(t, "school", pois[0].Category)
	assert.Equal(t, float64(812), pois[0].DistanceMeters)
	assert.Equal(t, "Best park", pois[1].Name)
}

func TestSearchSkipsFailingCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "hospital") {
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"features": [{"geometry": {"coordinates": [-97.7, 30.2]}, "properties": {"name": "Zilker Park"}}]}`))
	}))
	defer srv.Close()

	f := NewFinder(srv.Client(), srv.URL, "tok", []string{"hospital", "park"}, 2, nil)
	pois, err := f.Search(context.Background(), estate.Coordinates{Longitude: -97.74, Latitude: 30.26})
	require.NoError(t, err)
	require.Len(t, pois, 1)
	assert.Equal(t, "Zilker Park", pois[0].Name)
}

func TestSearchFallsBackToPlaceFormatted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"features": [{"geometry": {"coordinates": [-97.7, 30.2]}, "properties": {"place_formatted": "Downtown Austin"}}]}`))
	}))
	defer srv.Close()

	f := NewFinder(srv.Client(), srv.URL, "tok", []string{"cafe"}, 1, nil)
	pois, err := f.Search(context.Background(), estate.Coordinates{Longitude: -97.74, Latitude: 30.26})
	require.NoError(t, err)
	require.Len(t, pois, 1)
	assert.Equal(t, "Unknown", pois[0].Name)
	assert.Equal(t, "Downtown Austin", pois[0].Address)
}

func TestSearchRequiresToken(t *testing.T) {
	f := NewFinder(nil, "https://example.invalid", "", nil, 2, nil)
	_, err := f.Search(context.Background(), estate.Coordinates{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}
