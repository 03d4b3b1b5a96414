package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/hotelbooker-backend/internal/bookings"
	"github.com/angelmondragon/hotelbooker-backend/pkg/db/models"
	"github.com/angelmondragon/hotelbooker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
)

const defaultDescription = "Hotel Booking Payment"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type bookingReader interface {
	Get(ctx context.Context, bookingID, requesterID uuid.UUID) (*bookings.Detail, error)
}

// CreateIntentInput is the caller's request to open a payment.
type CreateIntentInput struct {
	Amount      decimal.Decimal
	Currency    string
	BookingID   *uuid.UUID
	Description *string
	Metadata    map[string]string
}

// IntentResult is returned to the client to complete payment.
type IntentResult struct {
	Payment        models.Payment
	ClientSecret   string
	PublishableKey string
}

// Service opens payment intents and exposes payment records to their owners.
type Service interface {
	CreateIntent(ctx context.Context, userID uuid.UUID, input CreateIntentInput) (*IntentResult, error)
	Confirm(ctx context.Context, userID uuid.UUID, reference string) (*models.Payment, error)
	GetByReference(ctx context.Context, userID uuid.UUID, reference string) (*models.Payment, error)
	GetByBooking(ctx context.Context, userID, bookingID uuid.UUID) (*models.Payment, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error)
}

// ServiceParams wires the payment service.
type ServiceParams struct {
	Repo       Repository
	Gateway    Gateway
	Bookings   bookingReader
	Reconciler *Reconciler
	Tx         txRunner
	Logger     *logger.Logger
	Timeout    time.Duration
}

type service struct {
	repo       Repository
	gateway    Gateway
	bookings   bookingReader
	reconciler *Reconciler
	tx         txRunner
	logg       *logger.Logger
	timeout    time.Duration
	validate   *validator.Validate
}

// NewService validates dependencies and builds the payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("booking reader required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &service{
		repo:       params.Repo,
		gateway:    params.Gateway,
		bookings:   params.Bookings,
		reconciler: params.Reconciler,
		tx:         params.Tx,
		logg:       params.Logger,
		timeout:    timeout,
		validate:   validator.New(),
	}, nil
}

func (s *service) CreateIntent(ctx context.Context, userID uuid.UUID, input CreateIntentInput) (*IntentResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if err := s.validate.Var(strings.ToUpper(currency), "required,iso4217"); err != nil {
		return nil, pkgerrors.FieldErrors("invalid payment request", map[string]string{
			"currency": "must be a 3-letter ISO 4217 code",
		})
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.FieldErrors("invalid payment request", map[string]string{
			"amount": "must be greater than zero",
		})
	}
	minor, err := ToMinorUnits(input.Amount, currency)
	if err != nil {
		return nil, err
	}

	if input.BookingID != nil {
		if _, err := s.bookings.Get(ctx, *input.BookingID, userID); err != nil {
			return nil, err
		}
	}

	description := defaultDescription
	if input.Description != nil && strings.TrimSpace(*input.Description) != "" {
		description = strings.TrimSpace(*input.Description)
	}
	metadata := make(map[string]string, len(input.Metadata)+2)
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	metadata["user_id"] = userID.String()
	if input.BookingID != nil {
		metadata["booking_id"] = input.BookingID.String()
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	intent, err := s.gateway.CreateIntent(callCtx, IntentRequest{
		AmountMinor: minor,
		Currency:    currency,
		Description: description,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	// Later status changes arrive through the webhook or Confirm.
	record := &models.Payment{
		BookingID:         input.BookingID,
		UserID:            userID,
		ExternalReference: intent.Reference,
		Amount:            FromMinorUnits(minor, currency),
		AmountMinor:       minor,
		Currency:          currency,
		Status:            enums.PaymentStatusPending,
		Description:       &description,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment")
	}

	logCtx := s.logg.WithPaymentReference(ctx, record.ExternalReference)
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"amount_minor": minor,
		"currency":     currency,
	}), "payment intent created")

	return &IntentResult{
		Payment:        *record,
		ClientSecret:   intent.ClientSecret,
		PublishableKey: s.gateway.PublishableKey(),
	}, nil
}

func (s *service) Confirm(ctx context.Context, userID uuid.UUID, reference string) (*models.Payment, error) {
	if _, err := s.GetByReference(ctx, userID, reference); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	intent, err := s.gateway.RetrieveIntent(callCtx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
	}

	target, reason := MapProcessorStatus(intent.Status)
	if target == enums.PaymentStatusFailed && intent.FailureReason != "" {
		reason = intent.FailureReason
	}

	var outcome Outcome
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		outcome, err = s.reconciler.Apply(ctx, tx, StatusUpdate{
			Reference: reference,
			Target:    target,
			Reason:    reason,
			Source:    SourceConfirm,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if !outcome.Found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return outcome.Payment, nil
}

func (s *service) GetByReference(ctx context.Context, userID uuid.UUID, reference string) (*models.Payment, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.FieldErrors("invalid payment reference", map[string]string{"reference": "is required"})
	}
	record, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		return nil, wrapRead(err, "load payment")
	}
	if record.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another user")
	}
	return record, nil
}

func (s *service) GetByBooking(ctx context.Context, userID, bookingID uuid.UUID) (*models.Payment, error) {
	if _, err := s.bookings.Get(ctx, bookingID, userID); err != nil {
		return nil, err
	}
	record, err := s.repo.FindLatestByBooking(ctx, bookingID)
	if err != nil {
		return nil, wrapRead(err, "load booking payment")
	}
	return record, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payments")
	}
	return rows, nil
}

func wrapRead(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}
