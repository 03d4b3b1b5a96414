package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Hotel is catalog data owned by the hotel catalog; this service only reads it.
type Hotel struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	City      string    `gorm:"column:city"`
	Country   string    `gorm:"column:country"`
	Address   *string   `gorm:"column:address"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Hotel) TableName() string { return "hotels" }

func (h *Hotel) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
