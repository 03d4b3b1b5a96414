package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/hotelbooker-backend/pkg/enums"
)

// Booking references its hotel and room by identifier only.
type Booking struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	HotelID         uuid.UUID           `gorm:"column:hotel_id;type:uuid;not null"`
	RoomID          uuid.UUID           `gorm:"column:room_id;type:uuid;not null"`
	CheckInDate     time.Time           `gorm:"column:check_in_date;type:date;not null"`
	CheckOutDate    time.Time           `gorm:"column:check_out_date;type:date;not null"`
	NumberOfGuests  int                 `gorm:"column:number_of_guests;not null"`
	NumberOfRooms   int                 `gorm:"column:number_of_rooms;not null"`
	NumberOfNights  int                 `gorm:"column:number_of_nights;not null"`
	TotalPrice      decimal.Decimal     `gorm:"column:total_price;type:numeric(12,2);not null"`
	Status          enums.BookingStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	GuestName       string              `gorm:"column:guest_name;not null"`
	GuestEmail      string              `gorm:"column:guest_email;not null"`
	GuestPhone      string              `gorm:"column:guest_phone;not null"`
	SpecialRequests *string             `gorm:"column:special_requests"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Booking) TableName() string { return "bookings" }

func (b *Booking) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
