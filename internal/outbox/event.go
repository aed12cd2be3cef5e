package outbox

import "encoding/json"

// Kafka topic name equals EventType, one event per topic.
const (
	EventPlanPublished = "availability.plan.published.v1"
	EventPlanPartial   = "availability.plan.partial.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// PlanPublishedPayload announces that a listing's availability was fully
// applied to the marketplace backend.
type PlanPublishedPayload struct {
	ListingID   string `json:"listingId"`
	RunID       string `json:"runId"`
	PublishedAt string `json:"publishedAt"`
}

// PlanPartialPayload announces a publish run that exhausted its retries
// with some steps applied and some not. Consumers use it to alert the
// provider that the marketplace may disagree with the draft.
type PlanPartialPayload struct {
	ListingID   string   `json:"listingId"`
	RunID       string   `json:"runId"`
	DoneSteps   []string `json:"doneSteps"`
	FailedStep  string   `json:"failedStep"`
	LastError   string   `json:"lastError"`
	ReportedAt  string   `json:"reportedAt"`
}

func NewPlanPublished(listingID string, p PlanPublishedPayload) Event {
	raw, _ := json.Marshal(p)
	return Event{
		AggregateType: "listing",
		AggregateID:   listingID,
		EventType:     EventPlanPublished,
		Payload:       raw,
	}
}

func NewPlanPartial(listingID string, p PlanPartialPayload) Event {
	raw, _ := json.Marshal(p)
	return Event{
		AggregateType: "listing",
		AggregateID:   listingID,
		EventType:     EventPlanPartial,
		Payload:       raw,
	}
}
