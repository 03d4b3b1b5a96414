package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/hotelbooker-backend/pkg/db"
	"github.com/angelmondragon/hotelbooker-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
)

// Repository persists payment records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	FindByReference(ctx context.Context, reference string) (*models.Payment, error)
	FindByReferenceForUpdate(ctx context.Context, reference string) (*models.Payment, error)
	FindLatestByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment reference already recorded")
		}
		return err
	}
	return nil
}

func (r *repository) Update(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", payment.ID).
		Updates(map[string]any{
			"status":         payment.Status,
			"failure_reason": payment.FailureReason,
			"updated_at":     payment.UpdatedAt,
		}).Error
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("external_reference = ?", reference))
}

// FindByReferenceForUpdate locks the payment row, serializing concurrent
// status updates for the same reference.
func (r *repository) FindByReferenceForUpdate(ctx context.Context, reference string) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("external_reference = ?", reference))
}

func (r *repository) FindLatestByBooking(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC"))
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) first(query *gorm.DB) (*models.Payment, error) {
	var payment models.Payment
	if err := query.First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, err
	}
	return &payment, nil
}
