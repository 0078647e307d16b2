package types

// Venue identifies one of the two trading venues.
type Venue string

const (
	// VenueKalshi is the streaming venue (WebSocket market data, REST orders).
	VenueKalshi Venue = "KALSHI"
	// VenueIBKR is the polled venue (Client Portal gateway REST).
	VenueIBKR Venue = "IBKR"
)

// Venues lists both venues in a stable order.
func Venues() []Venue {
	return []Venue{VenueKalshi, VenueIBKR}
}

// Side is one of the two complementary outcomes of a binary event contract.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite returns the complementary side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}
