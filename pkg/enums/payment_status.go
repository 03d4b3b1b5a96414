package enums

import (
	"fmt"
	"strings"
)

// PaymentStatus tracks the lifecycle of a processor payment intent.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// paymentSuccessors lists the forward moves out of each status. Statuses
// without an entry are terminal.
var paymentSuccessors = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusSucceeded:  {PaymentStatusRefunded},
}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusSucceeded,
		PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can leave p.
func (p PaymentStatus) IsTerminal() bool {
	return p.IsValid() && len(paymentSuccessors[p]) == 0
}

// CanTransitionTo reports whether next is a permitted successor of p.
func (p PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, candidate := range paymentSuccessors[p] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParsePaymentStatus accepts a status name in any case.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(value)))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid payment status %q", value)
	}
	return status, nil
}
