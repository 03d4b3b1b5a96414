package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/hotelbooker-backend/pkg/enums"
)

// Payment mirrors one processor payment intent. ExternalReference is unique.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	BookingID         *uuid.UUID          `gorm:"column:booking_id;type:uuid;index"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	ExternalReference string              `gorm:"column:external_reference;not null;uniqueIndex"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(18,3);not null"`
	AmountMinor       int64               `gorm:"column:amount_minor;not null"`
	Currency          string              `gorm:"column:currency;type:varchar(3);not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	FailureReason     *string             `gorm:"column:failure_reason"`
	Description       *string             `gorm:"column:description"`
	PaymentMethod     *string             `gorm:"column:payment_method"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
