package outbox

// Booking lifecycle event types. The Kafka topic name equals the event
// type; downstream consumers (notifications, dashboards) re-poll
// availability on receipt rather than trusting pushed state.
const (
	EventBookingRequested = "booking.requested.v1"
	EventBookingConfirmed = "booking.confirmed.v1"
	EventBookingCancelled = "booking.cancelled.v1"
	EventBookingCompleted = "booking.completed.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
