package flight

import "time"

// Flight is the next duty flight shown on the home page. Field formatting
// belongs to the page, not to this record.
type Flight struct {
	Number      string
	Origin      string
	Destination string
	Departure   time.Time
	Arrival     time.Time
	Listing     string
}

// IsZero reports whether no flight is scheduled.
func (f Flight) IsZero() bool {
	return f.Number == ""
}
