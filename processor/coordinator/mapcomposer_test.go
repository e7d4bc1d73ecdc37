package coordinator

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatesearch/estatesearch/estate"
)

func testComposer() *MapComposer {
	return NewMapComposer("mapbox/streets-v12", 600, 400, "tok")
}

func recordAt(index int, lon, lat float64) *PropertyRecord {
	return &PropertyRecord{
		Index:       index,
		Coordinates: &estate.Coordinates{Longitude: lon, Latitude: lat},
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	m := testComposer()
	records := []*PropertyRecord{
		recordAt(0, -97.71, 30.25),
		recordAt(1, -97.72, 30.26),
		recordAt(2, -97.73, 30.27),
	}

	first := m.Compose(records)
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Compose(records))
	}
}

func TestComposeLabelsFollowPropertyIndex(t *testing.T) {
	m := testComposer()
	records := []*PropertyRecord{
		recordAt(0, -97.71, 30.25),
		{Index: 1}, // never geocoded
		recordAt(2, -97.73, 30.27),
	}

	url := m.Compose(records)
	assert.Contains(t, url, "pin-l-1+e74c3c(-97.71,30.25)")
	assert.Contains(t, url, "pin-l-3+2ecc71(-97.73,30.27)")
	assert.NotContains(t, url, "pin-l-2+")
	assert.Contains(t, url, "mapbox/streets-v12/static/")
	assert.Contains(t, url, "/auto/600x400@2x?access_token=tok")
}

func TestComposeColorsCycle(t *testing.T) {
	m := testComposer()
	var records []*PropertyRecord
	for i := 0; i < 6; i++ {
		records = append(records, recordAt(i, -97.7-float64(i)/100, 30.25))
	}

	url := m.Compose(records)
	// index 5 wraps back to the first color
	assert.Contains(t, url, fmt.Sprintf("pin-l-6+%s(", markerColors[0]))
}

func TestComposeEmptyCases(t *testing.T) {
	m := testComposer()
	assert.Empty(t, m.Compose(nil))
	assert.Empty(t, m.Compose([]*PropertyRecord{{Index: 0}}))

	noToken := NewMapComposer("mapbox/streets-v12", 600, 400, "")
	assert.Empty(t, noToken.Compose([]*PropertyRecord{recordAt(0, -97.71, 30.25)}))
}
