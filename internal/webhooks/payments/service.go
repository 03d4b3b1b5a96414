// Package paymentwebhook applies processor notifications to payment records.
package paymentwebhook

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/hotelbooker-backend/internal/payments"
	"github.com/angelmondragon/hotelbooker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
	"github.com/angelmondragon/hotelbooker-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type reconciler interface {
	Apply(ctx context.Context, tx *gorm.DB, update payments.StatusUpdate) (payments.Outcome, error)
}

type transition struct {
	target        enums.PaymentStatus
	defaultReason string
}

var dispatch = map[payments.EventKind]transition{
	payments.EventSucceeded:     {target: enums.PaymentStatusSucceeded},
	payments.EventPaymentFailed: {target: enums.PaymentStatusFailed, defaultReason: "Payment failed"},
	payments.EventCanceled:      {target: enums.PaymentStatusCancelled, defaultReason: "Payment was canceled"},
	payments.EventProcessing:    {target: enums.PaymentStatusProcessing},
	payments.EventRefunded:      {target: enums.PaymentStatusRefunded},
}

type ServiceParams struct {
	Reconciler        reconciler
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.BookingMetrics
}

type Service struct {
	reconciler reconciler
	txRunner   txRunner
	logg       *logger.Logger
	metrics    *metrics.BookingMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		reconciler: params.Reconciler,
		txRunner:   params.TransactionRunner,
		logg:       params.Logger,
		metrics:    params.Metrics,
	}, nil
}

// HandleEvent applies one verified event. Unknown kinds and unknown
// references are acknowledged; an error means the processor should retry.
func (s *Service) HandleEvent(ctx context.Context, event *payments.Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}
	ctx = s.logg.WithEventID(ctx, event.ID)
	kind := string(event.Kind)

	rule, ok := dispatch[event.Kind]
	if !ok {
		s.logg.Info(s.logg.WithField(ctx, "event_type", event.Type), "ignoring unhandled payment event")
		s.metrics.IncWebhook(kind, metrics.OutcomeIgnored)
		return nil
	}
	if event.Reference == "" {
		s.metrics.IncWebhook(kind, metrics.OutcomeFailed)
		return pkgerrors.New(pkgerrors.CodeValidation, "payment reference missing from event")
	}

	reason := event.FailureReason
	if reason == "" {
		reason = rule.defaultReason
	}

	var outcome payments.Outcome
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		outcome, err = s.reconciler.Apply(ctx, tx, payments.StatusUpdate{
			Reference: event.Reference,
			Target:    rule.target,
			Reason:    reason,
			Source:    payments.SourceWebhook,
		})
		return err
	})
	if err != nil {
		s.metrics.IncWebhook(kind, metrics.OutcomeFailed)
		s.logg.Error(ctx, "payment event processing failed", err)
		return err
	}

	switch {
	case !outcome.Found:
		s.metrics.IncWebhook(kind, metrics.OutcomeUnknown)
	case outcome.Changed:
		s.metrics.IncWebhook(kind, metrics.OutcomeApplied)
	default:
		s.metrics.IncWebhook(kind, metrics.OutcomeNoop)
	}
	return nil
}

