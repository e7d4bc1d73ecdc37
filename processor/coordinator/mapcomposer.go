package coordinator

import (
	"fmt"
	"strings"
)

// markerColors cycle per property index so adjacent markers stay visually
// distinct.
var markerColors = []string{"e74c3c", "3498db", "2ecc71", "f39c12", "9b59b6"}

// MapComposer renders the static map reference for a finalized turn.
// Output is a pure function of the (index, coordinates) pairs: same records
// in, same URL out.
type MapComposer struct {
	Style  string
	Width  int
	Height int
	Token  string
}

// NewMapComposer returns a composer with the given style and dimensions.
func NewMapComposer(style string, width, height int, token string) *MapComposer {
	return &MapComposer{Style: style, Width: width, Height: height, Token: token}
}

// Compose builds a static-map URL with one numbered marker per property
// that has coordinates, labeled 1-based to match the summary ordering.
// Properties without coordinates are omitted; when none have coordinates
// (or no token is configured) Compose returns "" and the turn ships
// without a map.
func (m *MapComposer) Compose(records []*PropertyRecord) string {
	if m.Token == "" {
		return ""
	}

	var markers []string
	for _, rec := range records {
		if rec.Coordinates == nil {
			continue
		}
		label := rec.Index + 1
		color := markerColors[rec.Index%len(markerColors)]
		markers = append(markers, fmt.Sprintf("pin-l-%d+%s(%g,%g)",
			label, color, rec.Coordinates.Longitude, rec.Coordinates.Latitude))
	}
	if len(markers) == 0 {
		return ""
	}

	return fmt.Sprintf(
		"https://api.mapbox.com/styles/v1/%s/static/%s/auto/%dx%d@2x?access_token=%s",
		m.Style, strings.Join(markers, ","), m.Width, m.Height, m.Token)
}
