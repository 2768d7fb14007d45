package outbox

// Event is written to the outbox table in the same transaction as the state change it
// describes. EventType doubles as the Kafka topic.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventBayReserved  = "booking.bay.reserved.v1"
	EventBayCancelled = "booking.bay.cancelled.v1"
)
