package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Room is a bookable room type with a per-room unit counter. AvailableUnits is
// only ever mutated by the inventory ledger.
type Room struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	HotelID        uuid.UUID       `gorm:"column:hotel_id;type:uuid;not null;index"`
	RoomType       string          `gorm:"column:room_type;not null"`
	Description    *string         `gorm:"column:description"`
	PricePerNight  decimal.Decimal `gorm:"column:price_per_night;type:numeric(12,2);not null"`
	MaxGuests      int             `gorm:"column:max_guests;not null;default:0"`
	TotalUnits     int             `gorm:"column:total_units;not null"`
	AvailableUnits int             `gorm:"column:available_units;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Room) TableName() string { return "rooms" }

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
