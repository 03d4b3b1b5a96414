package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/hotelbooker-backend/pkg/db/models"
	"github.com/angelmondragon/hotelbooker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
)

// Repository persists bookings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.BookingStatus, cancelledAt *time.Time) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error)
	ListUpcoming(ctx context.Context, userID uuid.UUID, asOf time.Time) ([]models.Booking, error)
	ListCompletable(ctx context.Context, asOf time.Time, limit int) ([]models.Booking, error)
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bookings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.find(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate locks the booking row for the rest of the transaction.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repository) find(db *gorm.DB, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := db.Where("id = ?", id).First(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, err
	}
	return &booking, nil
}

// UpdateStatus moves a booking from one status to another and reports whether
// the row was still in the expected status.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.BookingStatus, cancelledAt *time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if cancelledAt != nil {
		updates["cancelled_at"] = *cancelledAt
	}
	res := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Booking, error) {
	var rows []models.Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListUpcoming(ctx context.Context, userID uuid.UUID, asOf time.Time) ([]models.Booking, error) {
	var rows []models.Booking
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND check_in_date > ?", userID, asOf).
		Order("check_in_date ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ListCompletable returns confirmed bookings whose stay ended on or before asOf.
func (r *repository) ListCompletable(ctx context.Context, asOf time.Time, limit int) ([]models.Booking, error) {
	var rows []models.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND check_out_date <= ?", enums.BookingStatusConfirmed, asOf).
		Order("check_out_date ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	var rows []models.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.BookingStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
