package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/hotelbooker-backend/pkg/db/models"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
)

const (
	BookingCompletionJobName    = "booking_completion"
	PendingBookingExpiryJobName = "pending_booking_expiry"

	defaultBookingBatchSize = 200
)

type completableBookingLister interface {
	ListCompletable(ctx context.Context, asOf time.Time, limit int) ([]models.Booking, error)
}

type pendingBookingLister interface {
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
}

type bookingCompleter interface {
	Complete(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

type bookingExpirer interface {
	Expire(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

// BookingCompletionJobParams configure the completion job.
type BookingCompletionJobParams struct {
	Logger    *logger.Logger
	Lister    completableBookingLister
	Bookings  bookingCompleter
	BatchSize int
}

// NewBookingCompletionJob builds the job that completes confirmed bookings
// whose check-out date has been reached.
func NewBookingCompletionJob(params BookingCompletionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lister == nil {
		return nil, fmt.Errorf("booking lister required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("booking service required")
	}
	return &bookingCompletionJob{
		logg:     params.Logger,
		lister:   params.Lister,
		bookings: params.Bookings,
		batch:    batchSize(params.BatchSize),
		now:      time.Now,
	}, nil
}

type bookingCompletionJob struct {
	logg     *logger.Logger
	lister   completableBookingLister
	bookings bookingCompleter
	batch    int
	now      func() time.Time
}

func (j *bookingCompletionJob) Name() string { return BookingCompletionJobName }

func (j *bookingCompletionJob) Run(ctx context.Context) error {
	today := startOfDay(j.now())
	rows, err := j.lister.ListCompletable(ctx, today, j.batch)
	if err != nil {
		return fmt.Errorf("list completable bookings: %w", err)
	}

	var errs error
	completed := 0
	for _, row := range rows {
		ok, err := j.bookings.Complete(ctx, row.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("complete booking %s: %w", row.ID, err))
			continue
		}
		if ok {
			completed++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"as_of":      today.Format(time.DateOnly),
		"candidates": len(rows),
		"completed":  completed,
	}), "booking completion pass finished")
	return errs
}

// PendingBookingExpiryJobParams configure the expiry job. A zero TTL turns
// the job into a no-op.
type PendingBookingExpiryJobParams struct {
	Logger    *logger.Logger
	Lister    pendingBookingLister
	Bookings  bookingExpirer
	TTL       time.Duration
	BatchSize int
}

// NewPendingBookingExpiryJob builds the job that cancels unpaid bookings
// older than the TTL and returns their rooms to inventory.
func NewPendingBookingExpiryJob(params PendingBookingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lister == nil {
		return nil, fmt.Errorf("booking lister required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("booking service required")
	}
	if params.TTL < 0 {
		return nil, fmt.Errorf("pending ttl must be non-negative")
	}
	return &pendingBookingExpiryJob{
		logg:     params.Logger,
		lister:   params.Lister,
		bookings: params.Bookings,
		ttl:      params.TTL,
		batch:    batchSize(params.BatchSize),
		now:      time.Now,
	}, nil
}

type pendingBookingExpiryJob struct {
	logg     *logger.Logger
	lister   pendingBookingLister
	bookings bookingExpirer
	ttl      time.Duration
	batch    int
	now      func() time.Time
}

func (j *pendingBookingExpiryJob) Name() string { return PendingBookingExpiryJobName }

func (j *pendingBookingExpiryJob) Run(ctx context.Context) error {
	if j.ttl == 0 {
		j.logg.Debug(ctx, "pending booking expiry disabled")
		return nil
	}
	cutoff := j.now().UTC().Add(-j.ttl)
	rows, err := j.lister.ListPendingCreatedBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list pending bookings: %w", err)
	}

	var errs error
	expired := 0
	for _, row := range rows {
		// Expire commits per booking.
		ok, err := j.bookings.Expire(ctx, row.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire booking %s: %w", row.ID, err))
			continue
		}
		if ok {
			expired++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(rows),
		"expired":    expired,
	}), "pending booking expiry pass finished")
	return errs
}

func batchSize(n int) int {
	if n <= 0 {
		return defaultBookingBatchSize
	}
	return n
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
