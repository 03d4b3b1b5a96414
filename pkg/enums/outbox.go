package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox row describes.
type OutboxAggregateType string

const (
	AggregateBooking OutboxAggregateType = "booking"
	AggregatePayment OutboxAggregateType = "payment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBooking,
	AggregatePayment,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event published through the outbox.
type OutboxEventType string

const (
	EventBookingCreated       OutboxEventType = "booking_created"
	EventBookingCanceled      OutboxEventType = "booking_canceled"
	EventBookingConfirmed     OutboxEventType = "booking_confirmed"
	EventBookingCompleted     OutboxEventType = "booking_completed"
	EventBookingExpired       OutboxEventType = "booking_expired"
	EventPaymentStatusChanged OutboxEventType = "payment_status_changed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBookingCreated,
	EventBookingCanceled,
	EventBookingConfirmed,
	EventBookingCompleted,
	EventBookingExpired,
	EventPaymentStatusChanged,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
