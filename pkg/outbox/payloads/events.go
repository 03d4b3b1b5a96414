package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/hotelbooker-backend/pkg/enums"
)

// BookingEvent describes a booking state change.
type BookingEvent struct {
	BookingID     uuid.UUID           `json:"booking_id"`
	UserID        uuid.UUID           `json:"user_id"`
	HotelID       uuid.UUID           `json:"hotel_id"`
	RoomID        uuid.UUID           `json:"room_id"`
	CheckInDate   string              `json:"check_in_date"`
	CheckOutDate  string              `json:"check_out_date"`
	NumberOfRooms int                 `json:"number_of_rooms"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	Status        enums.BookingStatus `json:"status"`
	Reason        string              `json:"reason,omitempty"`
}

// PaymentStatusChangedEvent is emitted whenever a payment transitions.
type PaymentStatusChangedEvent struct {
	PaymentID         uuid.UUID           `json:"payment_id"`
	BookingID         *uuid.UUID          `json:"booking_id,omitempty"`
	UserID            uuid.UUID           `json:"user_id"`
	ExternalReference string              `json:"external_reference"`
	PreviousStatus    enums.PaymentStatus `json:"previous_status"`
	Status            enums.PaymentStatus `json:"status"`
	FailureReason     *string             `json:"failure_reason,omitempty"`
	Amount            decimal.Decimal     `json:"amount"`
	Currency          string              `json:"currency"`
	Source            string              `json:"source"`
	ChangedAt         time.Time           `json:"changed_at"`
}
