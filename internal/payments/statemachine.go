package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/hotelbooker-backend/pkg/db/models"
	"github.com/angelmondragon/hotelbooker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
)

// CanTransition reports whether next is a permitted successor of current.
func CanTransition(current, next enums.PaymentStatus) bool {
	return current.CanTransitionTo(next)
}

// ApplyTransition moves record to target when target is a permitted
// successor of its current status. Repeated, terminal and out-of-order
// targets leave the record untouched and report changed=false.
func ApplyTransition(record *models.Payment, target enums.PaymentStatus, reason string, now time.Time) (bool, error) {
	if record == nil {
		return false, pkgerrors.New(pkgerrors.CodeInternal, "payment record required")
	}
	if !target.IsValid() {
		return false, pkgerrors.Newf(pkgerrors.CodeStateConflict, "invalid payment status transition to %q", target).
			WithDetails(map[string]string{"from": record.Status.String(), "to": string(target)})
	}
	if record.Status == target || !CanTransition(record.Status, target) {
		return false, nil
	}

	record.Status = target
	if reason = strings.TrimSpace(reason); reason != "" {
		record.FailureReason = &reason
	}
	record.UpdatedAt = now.UTC()
	return true, nil
}

// MapProcessorStatus translates a processor intent status. Unrecognized
// values map to failed with a reason so they are never silently dropped.
func MapProcessorStatus(raw string) (enums.PaymentStatus, string) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "succeeded":
		return enums.PaymentStatusSucceeded, ""
	case "processing":
		return enums.PaymentStatusProcessing, ""
	case "requires_payment_method", "requires_confirmation", "requires_action", "requires_capture":
		return enums.PaymentStatusPending, ""
	case "canceled":
		return enums.PaymentStatusCancelled, ""
	default:
		return enums.PaymentStatusFailed, fmt.Sprintf("unsupported processor status %q", raw)
	}
}
