package payments

import (
	"context"
	"errors"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// EventKind is the normalized category of a processor notification.
type EventKind string

const (
	EventSucceeded     EventKind = "succeeded"
	EventPaymentFailed EventKind = "payment_failed"
	EventCanceled      EventKind = "canceled"
	EventProcessing    EventKind = "processing"
	EventRefunded      EventKind = "refunded"
	EventUnknown       EventKind = "unknown"
)

// Event is a verified processor notification about one payment intent.
type Event struct {
	ID            string
	Kind          EventKind
	Type          string
	Reference     string
	FailureReason string
}

// IntentRequest describes a payment intent to open with the processor.
type IntentRequest struct {
	AmountMinor int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// Intent is the processor's view of a payment intent.
type Intent struct {
	Reference     string
	ClientSecret  string
	Status        string
	FailureReason string
}

// Gateway is the narrow surface the payment flows need from the processor.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, reference string) (*Intent, error)
	VerifySignature(payload []byte, signature string) (*Event, error)
	// ParseEvent decodes an unsigned payload; only used when no signing
	// secret is configured.
	ParseEvent(payload []byte) (*Event, error)
	PublishableKey() string
	SignatureRequired() bool
}
