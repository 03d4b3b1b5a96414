package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/hotelbooker-backend/api/responses"
	"github.com/angelmondragon/hotelbooker-backend/api/validators"
	"github.com/angelmondragon/hotelbooker-backend/internal/payments"
	"github.com/angelmondragon/hotelbooker-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
)

// CreatePaymentIntent opens a processor payment intent for the caller.
func CreatePaymentIntent(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := payments.CreateIntentInput{
			Amount:      payload.Amount,
			Currency:    payload.Currency,
			Description: payload.Description,
			Metadata:    payload.Metadata,
		}
		if payload.BookingID != nil {
			bookingID, err := validators.ParseUUID("booking_id", *payload.BookingID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.BookingID = &bookingID
		}

		result, err := svc.CreateIntent(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, intentResponse{
			PaymentIntentID: result.Payment.ExternalReference,
			ClientSecret:    result.ClientSecret,
			PublishableKey:  result.PublishableKey,
			Amount:          result.Payment.Amount,
			Currency:        result.Payment.Currency,
			Status:          string(result.Payment.Status),
		})
	}
}

// ConfirmPayment re-reads the intent from the processor and applies its status.
func ConfirmPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.Confirm(r.Context(), userID, chi.URLParam(r, "reference"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(record))
	}
}

func GetPaymentByReference(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.GetByReference(r.Context(), userID, chi.URLParam(r, "reference"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(record))
	}
}

func GetPaymentByBooking(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bookingID, err := validators.ParseUUID("booking_id", chi.URLParam(r, "bookingId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.GetByBooking(r.Context(), userID, bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResponse(record))
	}
}

func ListMyPayments(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]paymentResponse, 0, len(list))
		for i := range list {
			out = append(out, newPaymentResponse(&list[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type createIntentRequest struct {
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency" validate:"required,len=3"`
	BookingID   *string           `json:"booking_id,omitempty" validate:"omitempty,uuid"`
	Description *string           `json:"description,omitempty" validate:"omitempty,max=500"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type intentResponse struct {
	PaymentIntentID string          `json:"payment_intent_id"`
	ClientSecret    string          `json:"client_secret"`
	PublishableKey  string          `json:"publishable_key"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
}

type paymentResponse struct {
	ID              uuid.UUID       `json:"id"`
	BookingID       *uuid.UUID      `json:"booking_id,omitempty"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	FailureReason   *string         `json:"failure_reason,omitempty"`
	Description     *string         `json:"description,omitempty"`
	PaymentMethod   *string         `json:"payment_method,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func newPaymentResponse(p *models.Payment) paymentResponse {
	if p == nil {
		return paymentResponse{}
	}
	return paymentResponse{
		ID:              p.ID,
		BookingID:       p.BookingID,
		PaymentIntentID: p.ExternalReference,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Status:          string(p.Status),
		FailureReason:   p.FailureReason,
		Description:     p.Description,
		PaymentMethod:   p.PaymentMethod,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
