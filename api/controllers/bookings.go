package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/hotelbooker-backend/api/middleware"
	"github.com/angelmondragon/hotelbooker-backend/api/responses"
	"github.com/angelmondragon/hotelbooker-backend/api/validators"
	"github.com/angelmondragon/hotelbooker-backend/internal/bookings"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
)

const maxSpecialRequestsLen = 1000

// CreateBooking reserves rooms and records a pending booking for the caller.
func CreateBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createBookingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, http.StatusCreated, "Booking created", newBookingResponse(detail))
	}
}

// ListBookings returns the caller's bookings, newest first.
func ListBookings(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBookingList(list))
	}
}

// UpcomingBookings returns the caller's bookings whose check-in is after today,
// in any status.
func UpcomingBookings(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListUpcoming(r.Context(), userID, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBookingList(list))
	}
}

func GetBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bookingID, err := validators.ParseUUID("booking_id", chi.URLParam(r, "bookingId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Get(r.Context(), bookingID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBookingResponse(detail))
	}
}

// CancelBooking cancels the caller's booking and returns its rooms to inventory.
func CancelBooking(svc bookings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bookingID, err := validators.ParseUUID("booking_id", chi.URLParam(r, "bookingId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Cancel(r.Context(), bookingID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMessage(w, http.StatusOK, "Booking cancelled", newBookingResponse(detail))
	}
}

func requireUser(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserUUIDFromContext(r.Context())
	if userID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return userID, nil
}

type createBookingRequest struct {
	HotelID         string  `json:"hotel_id" validate:"required,uuid"`
	RoomID          string  `json:"room_id" validate:"required,uuid"`
	CheckInDate     string  `json:"check_in_date" validate:"required,datetime=2006-01-02"`
	CheckOutDate    string  `json:"check_out_date" validate:"required,datetime=2006-01-02"`
	NumberOfGuests  int     `json:"number_of_guests" validate:"min=1"`
	NumberOfRooms   int     `json:"number_of_rooms" validate:"min=1"`
	GuestName       string  `json:"guest_name" validate:"required,max=200"`
	GuestEmail      string  `json:"guest_email" validate:"required,email"`
	GuestPhone      string  `json:"guest_phone" validate:"required,max=50"`
	SpecialRequests *string `json:"special_requests,omitempty"`
}

func (p createBookingRequest) toInput(userID uuid.UUID) (bookings.CreateInput, error) {
	hotelID, err := validators.ParseUUID("hotel_id", p.HotelID)
	if err != nil {
		return bookings.CreateInput{}, err
	}
	roomID, err := validators.ParseUUID("room_id", p.RoomID)
	if err != nil {
		return bookings.CreateInput{}, err
	}
	checkIn, err := validators.ParseDate("check_in_date", p.CheckInDate)
	if err != nil {
		return bookings.CreateInput{}, err
	}
	checkOut, err := validators.ParseDate("check_out_date", p.CheckOutDate)
	if err != nil {
		return bookings.CreateInput{}, err
	}

	var requests *string
	if p.SpecialRequests != nil {
		if cleaned := validators.SanitizeString(*p.SpecialRequests, maxSpecialRequestsLen); cleaned != "" {
			requests = &cleaned
		}
	}

	return bookings.CreateInput{
		UserID:   userID,
		HotelID:  hotelID,
		RoomID:   roomID,
		CheckIn:  checkIn,
		CheckOut: checkOut,
		Guests:   p.NumberOfGuests,
		Rooms:    p.NumberOfRooms,
		Guest: bookings.GuestInfo{
			Name:  strings.TrimSpace(p.GuestName),
			Email: strings.TrimSpace(p.GuestEmail),
			Phone: strings.TrimSpace(p.GuestPhone),
		},
		SpecialRequests: requests,
	}, nil
}

type bookingResponse struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	HotelID         uuid.UUID       `json:"hotel_id"`
	HotelName       string          `json:"hotel_name"`
	RoomID          uuid.UUID       `json:"room_id"`
	RoomType        string          `json:"room_type"`
	CheckInDate     string          `json:"check_in_date"`
	CheckOutDate    string          `json:"check_out_date"`
	NumberOfGuests  int             `json:"number_of_guests"`
	NumberOfRooms   int             `json:"number_of_rooms"`
	NumberOfNights  int             `json:"number_of_nights"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Status          string          `json:"status"`
	GuestName       string          `json:"guest_name"`
	GuestEmail      string          `json:"guest_email"`
	GuestPhone      string          `json:"guest_phone"`
	SpecialRequests *string         `json:"special_requests,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func newBookingResponse(detail *bookings.Detail) bookingResponse {
	if detail == nil {
		return bookingResponse{}
	}
	b := detail.Booking
	return bookingResponse{
		ID:              b.ID,
		UserID:          b.UserID,
		HotelID:         b.HotelID,
		HotelName:       detail.HotelName,
		RoomID:          b.RoomID,
		RoomType:        detail.RoomType,
		CheckInDate:     b.CheckInDate.UTC().Format(validators.DateLayout),
		CheckOutDate:    b.CheckOutDate.UTC().Format(validators.DateLayout),
		NumberOfGuests:  b.NumberOfGuests,
		NumberOfRooms:   b.NumberOfRooms,
		NumberOfNights:  b.NumberOfNights,
		TotalPrice:      b.TotalPrice,
		Status:          string(b.Status),
		GuestName:       b.GuestName,
		GuestEmail:      b.GuestEmail,
		GuestPhone:      b.GuestPhone,
		SpecialRequests: b.SpecialRequests,
		CancelledAt:     b.CancelledAt,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func newBookingList(list []bookings.Detail) []bookingResponse {
	out := make([]bookingResponse, 0, len(list))
	for i := range list {
		out = append(out, newBookingResponse(&list[i]))
	}
	return out
}
