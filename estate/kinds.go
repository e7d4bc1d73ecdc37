package estate

// Kind identifies a worker specialty. Each kind has exactly one request and
// one reply payload type, and one request subject in the worker directory.
type Kind string

const (
	// KindScoping collects and validates user search requirements.
	KindScoping Kind = "scoping"
	// KindResearch finds candidate property listings.
	KindResearch Kind = "research"
	// KindIntern answers general area/neighborhood questions.
	KindIntern Kind = "intern"
	// KindGeocode converts a listing address to coordinates.
	KindGeocode Kind = "geocode"
	// KindDiscovery finds points of interest near coordinates.
	KindDiscovery Kind = "discovery"
	// KindCommunity scores a community (safety, schools, prices).
	KindCommunity Kind = "community"
	// KindProbe gathers negotiation-leverage intelligence for a listing.
	KindProbe Kind = "probe"
	// KindNegotiate summarizes leverage findings into negotiation advice.
	KindNegotiate Kind = "negotiate"
)

// AllKinds lists every worker kind in a stable order.
var AllKinds = []Kind{
	KindScoping,
	KindResearch,
	KindIntern,
	KindGeocode,
	KindDiscovery,
	KindCommunity,
	KindProbe,
	KindNegotiate,
}

// EnrichmentKinds are the kinds dispatched during the ENRICHING phase.
// Geocode and probe fan out per property; discovery chains off a successful
// geocode; community and negotiate run once per session.
var EnrichmentKinds = []Kind{
	KindGeocode,
	KindDiscovery,
	KindCommunity,
	KindProbe,
	KindNegotiate,
}

// PerProperty reports whether requests of this kind target a single
// property record rather than the whole session.
func (k Kind) PerProperty() bool {
	switch k {
	case KindGeocode, KindDiscovery, KindProbe:
		return true
	default:
		return false
	}
}

// Valid reports whether k is a known worker kind.
func (k Kind) Valid() bool {
	switch k {
	case KindScoping, KindResearch, KindIntern, KindGeocode,
		KindDiscovery, KindCommunity, KindProbe, KindNegotiate:
		return true
	default:
		return false
	}
}

func (k Kind) String() string { return string(k) }
