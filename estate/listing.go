package estate

// Listing is a candidate property returned by the research worker.
type Listing struct {
	Address   string  `json:"address"`
	Price     float64 `json:"price,omitempty"`
	Bedrooms  int     `json:"bedrooms,omitempty"`
	Bathrooms int     `json:"bathrooms,omitempty"`
	Link      string  `json:"link,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
	Summary   string  `json:"summary,omitempty"`
}

// Coordinates is a geocoded point. Longitude first matches the GeoJSON
// ordering used by the geocoding provider.
type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// POI is a point of interest near a property.
type POI struct {
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	Address        string  `json:"address,omitempty"`
	DistanceMeters float64 `json:"distance_meters,omitempty"`
}

// CommunityReport scores the community a search targets.
type CommunityReport struct {
	Location                   string   `json:"location"`
	OverallScore               float64  `json:"overall_score"`
	OverallExplanation         string   `json:"overall_explanation,omitempty"`
	SafetyScore                float64  `json:"safety_score"`
	PositiveStories            []string `json:"positive_stories,omitempty"`
	NegativeStories            []string `json:"negative_stories,omitempty"`
	SchoolRating               float64  `json:"school_rating"`
	SchoolExplanation          string   `json:"school_explanation,omitempty"`
	HousingPricePerSquareFoot  float64  `json:"housing_price_per_square_foot,omitempty"`
	AverageHouseSizeSquareFoot float64  `json:"average_house_size_square_foot,omitempty"`
}

// Leverage categories recognized by the prober.
const (
	LeverageTimeOnMarket     = "time_on_market"
	LeveragePriceHistory     = "price_history"
	LeveragePropertyIssues   = "property_issues"
	LeverageOwnerSituation   = "owner_situation"
	LeverageMarketConditions = "market_conditions"
)

// LeverageFinding is a single negotiation-relevant fact about a listing.
type LeverageFinding struct {
	Category string `json:"category"`
	Detail   string `json:"detail"`
}

// LeverageReport aggregates a listing's findings with an overall score
// from 0 (seller holds all cards) to 10 (buyer holds all cards).
type LeverageReport struct {
	Findings      []LeverageFinding `json:"findings,omitempty"`
	LeverageScore float64           `json:"leverage_score"`
	Summary       string            `json:"summary,omitempty"`
}

// NegotiationAdvice is the negotiator's session-level synthesis of the
// leverage reports.
type NegotiationAdvice struct {
	Strategy       string   `json:"strategy"`
	TalkingPoints  []string `json:"talking_points,omitempty"`
	SuggestedOffer string   `json:"suggested_offer,omitempty"`
}
