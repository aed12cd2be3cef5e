package plan

import "time"

// Wire shapes exchanged with the marketplace backend. The backend owns
// this contract; field names and the seat sentinel must not drift.

const (
	// PlanTypeTime is the only availability plan type the backend accepts.
	PlanTypeTime = "availability-plan/time"

	// DefaultTimezone is assumed when a stored plan carries no timezone.
	DefaultTimezone = "Asia/Riyadh"

	// SeatsAvailable marks an exception range as open. The backend models
	// exceptions as seat counts, so "open regardless of the template" is
	// encoded as an effectively unlimited seat count.
	SeatsAvailable = 999

	// SeatsUnavailable marks an exception range as closed.
	SeatsUnavailable = 0
)

type Wire struct {
	Type     string  `json:"type"`
	Timezone string  `json:"timezone"`
	Entries  []Entry `json:"entries"`
}

type Entry struct {
	DayOfWeek string `json:"dayOfWeek"`
	Seats     int    `json:"seats"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// WireException is the create payload for a backend exception resource.
type WireException struct {
	ListingID string    `json:"listingId"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Seats     int       `json:"seats"`
}

// ExceptionResource is a stored exception as the backend returns it.
type ExceptionResource struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Seats int       `json:"seats"`
}
