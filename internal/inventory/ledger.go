package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
	"github.com/angelmondragon/hotelbooker-backend/pkg/metrics"
)

const (
	opReserve = "reserve"
	opRelease = "release"
)

// Ledger owns the available-unit counter of every room.
type Ledger interface {
	// Reserve decrements available units by count and returns the new count.
	Reserve(ctx context.Context, tx *gorm.DB, roomID uuid.UUID, count int) (int, error)
	// Release increments available units by count and returns the new count.
	Release(ctx context.Context, tx *gorm.DB, roomID uuid.UUID, count int) (int, error)
}

type ledger struct {
	db      *gorm.DB
	logg    *logger.Logger
	metrics *metrics.BookingMetrics
}

type unitCounts struct {
	AvailableUnits int
	TotalUnits     int
}

// NewLedger builds a ledger. Calls made with a nil tx run on db directly.
func NewLedger(db *gorm.DB, logg *logger.Logger, m *metrics.BookingMetrics) (Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("database required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ledger{db: db, logg: logg, metrics: m}, nil
}

func (l *ledger) Reserve(ctx context.Context, tx *gorm.DB, roomID uuid.UUID, count int) (int, error) {
	if err := validate(roomID, count); err != nil {
		return 0, err
	}

	var counts unitCounts
	res := l.conn(ctx, tx).Raw(`
		UPDATE rooms
		SET available_units = available_units - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_units >= ?
		RETURNING available_units, total_units
	`, count, roomID, count).Scan(&counts)
	if res.Error != nil {
		l.metrics.IncInventory(opReserve, metrics.ResultError)
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected == 1 {
		l.metrics.IncInventory(opReserve, metrics.ResultOK)
		return counts.AvailableUnits, nil
	}

	current, err := l.load(ctx, tx, roomID)
	if err != nil {
		l.metrics.IncInventory(opReserve, resultFor(err))
		return 0, err
	}
	l.metrics.IncInventory(opReserve, metrics.ResultInsufficient)
	return 0, pkgerrors.New(pkgerrors.CodeInsufficientInventory, "not enough rooms available").
		WithDetails(map[string]any{
			"room_id":   roomID.String(),
			"requested": count,
			"available": current.AvailableUnits,
		})
}

func (l *ledger) Release(ctx context.Context, tx *gorm.DB, roomID uuid.UUID, count int) (int, error) {
	if err := validate(roomID, count); err != nil {
		return 0, err
	}

	var counts unitCounts
	res := l.conn(ctx, tx).Raw(`
		UPDATE rooms
		SET available_units = available_units + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_units + ? <= total_units
		RETURNING available_units, total_units
	`, count, roomID, count).Scan(&counts)
	if res.Error != nil {
		l.metrics.IncInventory(opRelease, metrics.ResultError)
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
	}
	if res.RowsAffected == 1 {
		l.metrics.IncInventory(opRelease, metrics.ResultOK)
		return counts.AvailableUnits, nil
	}

	current, err := l.load(ctx, tx, roomID)
	if err != nil {
		l.metrics.IncInventory(opRelease, resultFor(err))
		return 0, err
	}

	// Releasing past total means a booking released units it never held.
	l.metrics.IncInventory(opRelease, metrics.ResultError)
	l.metrics.IncConsistencyError()
	logCtx := l.logg.WithFields(ctx, map[string]any{
		"room_id":         roomID.String(),
		"release_units":   count,
		"available_units": current.AvailableUnits,
		"total_units":     current.TotalUnits,
	})
	consistencyErr := pkgerrors.New(pkgerrors.CodeInternal, "inventory release exceeds total units")
	l.logg.Error(logCtx, "inventory consistency violation", consistencyErr)
	return 0, consistencyErr
}

func (l *ledger) load(ctx context.Context, tx *gorm.DB, roomID uuid.UUID) (*unitCounts, error) {
	var counts unitCounts
	res := l.conn(ctx, tx).Raw(`SELECT available_units, total_units FROM rooms WHERE id = ?`, roomID).Scan(&counts)
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "load room inventory")
	}
	if res.RowsAffected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "room not found")
	}
	return &counts, nil
}

func (l *ledger) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return l.db.WithContext(ctx)
}

func validate(roomID uuid.UUID, count int) error {
	if roomID == uuid.Nil {
		return pkgerrors.FieldErrors("invalid inventory request", map[string]string{"room_id": "is required"})
	}
	if count < 1 {
		return pkgerrors.FieldErrors("invalid inventory request", map[string]string{"count": "must be at least 1"})
	}
	return nil
}

func resultFor(err error) string {
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return metrics.ResultNotFound
	}
	return metrics.ResultError
}
