package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hotelbooker-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
)

// Repository reads hotel and room catalog records. Inventory counters are
// never written here.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindHotel(ctx context.Context, id uuid.UUID) (*models.Hotel, error)
	FindRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	HotelsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Hotel, error)
	RoomsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Room, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindHotel(ctx context.Context, id uuid.UUID) (*models.Hotel, error) {
	var hotel models.Hotel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&hotel).Error; err != nil {
		return nil, notFoundOr(err, "hotel not found", "load hotel")
	}
	return &hotel, nil
}

func (r *repository) FindRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error; err != nil {
		return nil, notFoundOr(err, "room not found", "load room")
	}
	return &room, nil
}

func (r *repository) HotelsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Hotel, error) {
	out := make(map[uuid.UUID]models.Hotel, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var hotels []models.Hotel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&hotels).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load hotels")
	}
	for _, hotel := range hotels {
		out[hotel.ID] = hotel
	}
	return out, nil
}

func (r *repository) RoomsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Room, error) {
	out := make(map[uuid.UUID]models.Room, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rooms []models.Room
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rooms).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rooms")
	}
	for _, room := range rooms {
		out[room.ID] = room
	}
	return out, nil
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
