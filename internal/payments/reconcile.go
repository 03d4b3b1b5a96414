package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hotelbooker-backend/pkg/db/models"
	"github.com/angelmondragon/hotelbooker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
	"github.com/angelmondragon/hotelbooker-backend/pkg/outbox"
	"github.com/angelmondragon/hotelbooker-backend/pkg/outbox/payloads"
)

// Sources recorded on payment_status_changed events.
const (
	SourceWebhook = "webhook"
	SourceConfirm = "confirm"
)

type bookingConfirmer interface {
	ConfirmPaid(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (enums.BookingStatus, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StatusUpdate is a requested move of one payment to a new status.
type StatusUpdate struct {
	Reference string
	Target    enums.PaymentStatus
	Reason    string
	Source    string
}

// Outcome reports what a StatusUpdate did.
type Outcome struct {
	Found   bool
	Changed bool
	Payment *models.Payment
}

// Reconciler applies status updates to locked payment records and carries
// their side effects in the same transaction.
type Reconciler struct {
	repo     Repository
	bookings bookingConfirmer
	outbox   outboxEmitter
	logg     *logger.Logger
	now      func() time.Time
}

// NewReconciler wires a Reconciler. clock may be nil.
func NewReconciler(repo Repository, bookings bookingConfirmer, emitter outboxEmitter, logg *logger.Logger, clock func() time.Time) (*Reconciler, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if bookings == nil {
		return nil, fmt.Errorf("booking confirmer required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &Reconciler{repo: repo, bookings: bookings, outbox: emitter, logg: logg, now: clock}, nil
}

// Apply must run inside tx. An unknown reference is not an error; the
// outcome reports Found=false.
func (r *Reconciler) Apply(ctx context.Context, tx *gorm.DB, update StatusUpdate) (Outcome, error) {
	ctx = r.logg.WithPaymentReference(ctx, update.Reference)
	repo := r.repo.WithTx(tx)

	record, err := repo.FindByReferenceForUpdate(ctx, update.Reference)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			r.logg.Warn(ctx, "payment record not found for processor reference")
			return Outcome{}, nil
		}
		return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock payment")
	}

	previous := record.Status
	changed, err := ApplyTransition(record, update.Target, update.Reason, r.now())
	if err != nil {
		return Outcome{Found: true, Payment: record}, err
	}
	if !changed {
		fieldsCtx := r.logg.WithFields(ctx, map[string]any{
			"status": previous.String(),
			"target": update.Target.String(),
		})
		if previous.IsTerminal() && previous != update.Target {
			r.logg.Info(fieldsCtx, "ignoring update for a payment in a terminal status")
		} else {
			r.logg.Debug(fieldsCtx, "payment status unchanged")
		}
		return Outcome{Found: true, Payment: record}, nil
	}

	if err := repo.Update(ctx, record); err != nil {
		return Outcome{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment status")
	}
	if err := r.emit(ctx, tx, record, previous, update.Source); err != nil {
		return Outcome{}, err
	}

	if record.Status == enums.PaymentStatusSucceeded && record.BookingID != nil {
		bookingCtx := r.logg.WithBookingID(ctx, record.BookingID.String())
		status, err := r.bookings.ConfirmPaid(bookingCtx, tx, *record.BookingID)
		if err != nil {
			if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return Outcome{}, err
			}
			r.logg.Warn(bookingCtx, "payment succeeded for a booking that no longer exists")
		} else if status == enums.BookingStatusCancelled {
			r.logg.Warn(bookingCtx, "payment succeeded for a cancelled booking; refund required")
		}
	}

	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"from":   previous.String(),
		"to":     record.Status.String(),
		"source": update.Source,
	}), "payment status changed")
	return Outcome{Found: true, Changed: true, Payment: record}, nil
}

func (r *Reconciler) emit(ctx context.Context, tx *gorm.DB, record *models.Payment, previous enums.PaymentStatus, source string) error {
	err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentStatusChanged,
		AggregateType: enums.AggregatePayment,
		AggregateID:   record.ID,
		Actor:         &outbox.ActorRef{UserID: record.UserID, Source: source},
		OccurredAt:    record.UpdatedAt,
		Data: payloads.PaymentStatusChangedEvent{
			PaymentID:         record.ID,
			BookingID:         record.BookingID,
			UserID:            record.UserID,
			ExternalReference: record.ExternalReference,
			PreviousStatus:    previous,
			Status:            record.Status,
			FailureReason:     record.FailureReason,
			Amount:            record.Amount,
			Currency:          record.Currency,
			Source:            source,
			ChangedAt:         record.UpdatedAt,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit payment event")
	}
	return nil
}
