package enum

import "strings"

// Venue identifies a trading venue.
type Venue uint8

const (
	_venue_beg Venue = iota
	VenueExtended
	VenueLighter
	VenueEdgeX
	_venue_end
)

func (v Venue) IsAvailable() bool {
	return v > _venue_beg && v < _venue_end
}

func (v Venue) String() string {
	switch v {
	case VenueExtended:
		return "extended"
	case VenueLighter:
		return "lighter"
	case VenueEdgeX:
		return "edgex"
	default:
		return "unknown"
	}
}

// ParseVenue maps a case-insensitive venue name to a Venue.
func ParseVenue(s string) (Venue, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "extended":
		return VenueExtended, true
	case "lighter":
		return VenueLighter, true
	case "edgex":
		return VenueEdgeX, true
	default:
		return _venue_beg, false
	}
}
