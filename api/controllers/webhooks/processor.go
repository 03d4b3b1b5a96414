package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/hotelbooker-backend/api/responses"
	"github.com/angelmondragon/hotelbooker-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
)

const (
	signatureHeader = "Stripe-Signature"
	maxPayloadBytes = 64 << 10
)

type PaymentWebhookService interface {
	HandleEvent(ctx context.Context, event *payments.Event) error
}

type eventVerifier interface {
	VerifySignature(payload []byte, signature string) (*payments.Event, error)
	ParseEvent(payload []byte) (*payments.Event, error)
	SignatureRequired() bool
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// PaymentProcessorWebhook receives payment intent notifications. It answers
// 200 for handled, ignored and duplicate events, 400 for payloads that fail
// verification, and 5xx when processing fails so the processor redelivers.
func PaymentProcessorWebhook(svc PaymentWebhookService, verifier eventVerifier, guard eventGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		event, err := decodeEvent(verifier, payload, r.Header.Get(signatureHeader))
		if err != nil {
			if logg != nil {
				logg.Warn(ctx, "rejected payment webhook: "+err.Error())
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithEventID(ctx, event.ID)
		}

		if event.ID != "" {
			alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if alreadyProcessed {
				responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
				return
			}
		}

		handled := false
		if event.ID != "" {
			// Unmark on error or panic so the processor's redelivery is applied.
			defer func() {
				if !handled {
					releaseGuard(ctx, guard, event.ID, logg)
				}
			}()
		}
		if err := svc.HandleEvent(ctx, event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		handled = true

		if logg != nil {
			logg.Info(ctx, "payment event "+event.Type+" processed")
		}
		responses.WriteSuccess(w, map[string]string{"status": "received"})
	}
}

func releaseGuard(ctx context.Context, guard eventGuard, eventID string, logg *logger.Logger) {
	if err := guard.Delete(ctx, eventID); err != nil && logg != nil {
		logg.Error(ctx, "failed to release webhook event mark; redeliveries will be treated as duplicates", err)
	}
}

func decodeEvent(verifier eventVerifier, payload []byte, signature string) (*payments.Event, error) {
	if len(payload) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "empty webhook payload")
	}
	if !verifier.SignatureRequired() {
		event, err := verifier.ParseEvent(payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
		}
		return event, nil
	}
	if signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook signature missing")
	}
	event, err := verifier.VerifySignature(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook signature")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	return event, nil
}
