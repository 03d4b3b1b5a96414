package bookings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/hotelbooker-backend/internal/catalog"
	"github.com/angelmondragon/hotelbooker-backend/internal/inventory"
	"github.com/angelmondragon/hotelbooker-backend/pkg/db/models"
	"github.com/angelmondragon/hotelbooker-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
	"github.com/angelmondragon/hotelbooker-backend/pkg/outbox"
	"github.com/angelmondragon/hotelbooker-backend/pkg/outbox/payloads"
)

const dateLayout = "2006-01-02"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// GuestInfo carries the lead guest's contact details.
type GuestInfo struct {
	Name  string
	Email string
	Phone string
}

// CreateInput describes a booking request made by UserID.
type CreateInput struct {
	UserID          uuid.UUID
	HotelID         uuid.UUID
	RoomID          uuid.UUID
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int
	Rooms           int
	Guest           GuestInfo
	SpecialRequests *string
}

// Detail is a booking together with the catalog names it references.
type Detail struct {
	models.Booking
	HotelName string
	RoomType  string
}

// Service manages the booking lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Detail, error)
	Cancel(ctx context.Context, bookingID, requesterID uuid.UUID) (*Detail, error)
	Get(ctx context.Context, bookingID, requesterID uuid.UUID) (*Detail, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Detail, error)
	ListUpcoming(ctx context.Context, userID uuid.UUID, asOf time.Time) ([]Detail, error)

	// ConfirmPaid confirms a pending booking inside the caller's transaction
	// and returns the booking's resulting status.
	ConfirmPaid(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (enums.BookingStatus, error)
	// Complete marks a confirmed booking as completed.
	Complete(ctx context.Context, bookingID uuid.UUID) (bool, error)
	// Expire cancels an unpaid pending booking and releases its rooms.
	Expire(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

// ServiceParams wires the booking service.
type ServiceParams struct {
	Repo    Repository
	Catalog catalog.Repository
	Ledger  inventory.Ledger
	Tx      txRunner
	Outbox  outboxEmitter
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	ledger  inventory.Ledger
	tx      txRunner
	outbox  outboxEmitter
	logg    *logger.Logger
	now     func() time.Time
}

// NewService validates dependencies and builds the booking service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:    params.Repo,
		catalog: params.Catalog,
		ledger:  params.Ledger,
		tx:      params.Tx,
		outbox:  params.Outbox,
		logg:    params.Logger,
		now:     clock,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*Detail, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	checkIn, checkOut := DateOnly(input.CheckIn), DateOnly(input.CheckOut)
	if !checkOut.After(checkIn) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidDateRange, "check-out date must be after check-in date").
			WithDetails(map[string]string{"check_out_date": "must be after check_in_date"})
	}
	if err := s.validateCreate(input, checkIn); err != nil {
		return nil, err
	}

	var detail *Detail
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalogRepo := s.catalog.WithTx(tx)
		hotel, err := catalogRepo.FindHotel(ctx, input.HotelID)
		if err != nil {
			return err
		}
		room, err := catalogRepo.FindRoom(ctx, input.RoomID)
		if err != nil {
			return err
		}
		if room.HotelID != hotel.ID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "room not found for hotel")
		}
		if room.MaxGuests > 0 && input.Guests > room.MaxGuests*input.Rooms {
			return pkgerrors.FieldErrors("invalid booking request", map[string]string{
				"number_of_guests": fmt.Sprintf("must not exceed %d for %d room(s)", room.MaxGuests*input.Rooms, input.Rooms),
			})
		}

		if _, err := s.ledger.Reserve(ctx, tx, room.ID, input.Rooms); err != nil {
			return err
		}

		nights := Nights(checkIn, checkOut)
		booking := &models.Booking{
			UserID:          input.UserID,
			HotelID:         hotel.ID,
			RoomID:          room.ID,
			CheckInDate:     checkIn,
			CheckOutDate:    checkOut,
			NumberOfGuests:  input.Guests,
			NumberOfRooms:   input.Rooms,
			NumberOfNights:  nights,
			TotalPrice:      TotalPrice(room.PricePerNight, nights, input.Rooms),
			Status:          enums.BookingStatusPending,
			GuestName:       strings.TrimSpace(input.Guest.Name),
			GuestEmail:      strings.TrimSpace(input.Guest.Email),
			GuestPhone:      strings.TrimSpace(input.Guest.Phone),
			SpecialRequests: input.SpecialRequests,
		}
		if err := s.repo.WithTx(tx).Create(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist booking")
		}
		if err := s.emit(ctx, tx, enums.EventBookingCreated, booking, ""); err != nil {
			return err
		}
		detail = &Detail{Booking: *booking, HotelName: hotel.Name, RoomType: room.RoomType}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithBookingID(ctx, detail.ID.String())
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"room_id":         detail.RoomID.String(),
		"number_of_rooms": detail.NumberOfRooms,
		"total_price":     detail.TotalPrice.String(),
	}), "booking created")
	return detail, nil
}

func (s *service) validateCreate(input CreateInput, checkIn time.Time) error {
	fields := map[string]string{}
	if input.HotelID == uuid.Nil {
		fields["hotel_id"] = "is required"
	}
	if input.RoomID == uuid.Nil {
		fields["room_id"] = "is required"
	}
	if input.Guests < 1 {
		fields["number_of_guests"] = "must be at least 1"
	}
	if input.Rooms < 1 {
		fields["number_of_rooms"] = "must be at least 1"
	}
	if checkIn.Before(DateOnly(s.now().UTC())) {
		fields["check_in_date"] = "must not be in the past"
	}
	if strings.TrimSpace(input.Guest.Name) == "" {
		fields["guest_name"] = "is required"
	}
	if strings.TrimSpace(input.Guest.Email) == "" {
		fields["guest_email"] = "is required"
	}
	if len(fields) > 0 {
		return pkgerrors.FieldErrors("invalid booking request", fields)
	}
	return nil
}

func (s *service) Cancel(ctx context.Context, bookingID, requesterID uuid.UUID) (*Detail, error) {
	var cancelled *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.UserID != requesterID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another user")
		}
		cancelled, err = s.cancelLocked(ctx, tx, booking, enums.EventBookingCanceled, "requested by guest")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithBookingID(ctx, cancelled.ID.String()), "booking cancelled")
	return s.detail(ctx, *cancelled)
}

// cancelLocked cancels a booking whose row is already locked by tx and
// returns its rooms to inventory. A failed release aborts the transaction.
func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, booking *models.Booking, event enums.OutboxEventType, reason string) (*models.Booking, error) {
	if booking.Status == enums.BookingStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyCancelled, "booking is already cancelled")
	}
	if !booking.Status.CanTransitionTo(enums.BookingStatusCancelled) {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "%s bookings cannot be cancelled", booking.Status).
			WithDetails(map[string]string{"status": booking.Status.String()})
	}

	now := s.now().UTC()
	updated, err := s.repo.WithTx(tx).UpdateStatus(ctx, booking.ID, booking.Status, enums.BookingStatusCancelled, &now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel booking")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "booking changed concurrently")
	}
	if _, err := s.ledger.Release(ctx, tx, booking.RoomID, booking.NumberOfRooms); err != nil {
		return nil, err
	}

	booking.Status = enums.BookingStatusCancelled
	booking.CancelledAt = &now
	if err := s.emit(ctx, tx, event, booking, reason); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) Get(ctx context.Context, bookingID, requesterID uuid.UUID) (*Detail, error) {
	booking, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, wrapRead(err, "load booking")
	}
	if booking.UserID != requesterID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another user")
	}
	return s.detail(ctx, *booking)
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]Detail, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list bookings")
	}
	return s.details(ctx, rows)
}

func (s *service) ListUpcoming(ctx context.Context, userID uuid.UUID, asOf time.Time) ([]Detail, error) {
	rows, err := s.repo.ListUpcoming(ctx, userID, DateOnly(asOf.UTC()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list upcoming bookings")
	}
	return s.details(ctx, rows)
}

func (s *service) ConfirmPaid(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (enums.BookingStatus, error) {
	if tx == nil {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "transaction required to confirm booking")
	}
	repo := s.repo.WithTx(tx)
	booking, err := repo.FindByIDForUpdate(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if booking.Status != enums.BookingStatusPending {
		return booking.Status, nil
	}
	updated, err := repo.UpdateStatus(ctx, booking.ID, enums.BookingStatusPending, enums.BookingStatusConfirmed, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm booking")
	}
	if !updated {
		return "", pkgerrors.New(pkgerrors.CodeConflict, "booking changed concurrently")
	}
	booking.Status = enums.BookingStatusConfirmed
	if err := s.emit(ctx, tx, enums.EventBookingConfirmed, booking, "payment succeeded"); err != nil {
		return "", err
	}
	return booking.Status, nil
}

func (s *service) Complete(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	completed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := repo.FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status != enums.BookingStatusConfirmed {
			return nil
		}
		updated, err := repo.UpdateStatus(ctx, booking.ID, enums.BookingStatusConfirmed, enums.BookingStatusCompleted, nil)
		if err != nil || !updated {
			return err
		}
		booking.Status = enums.BookingStatusCompleted
		completed = true
		return s.emit(ctx, tx, enums.EventBookingCompleted, booking, "")
	})
	return completed, err
}

func (s *service) Expire(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	expired := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		booking, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.Status != enums.BookingStatusPending {
			return nil
		}
		if _, err := s.cancelLocked(ctx, tx, booking, enums.EventBookingExpired, "payment not received"); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, booking *models.Booking, reason string) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Actor:         &outbox.ActorRef{UserID: booking.UserID},
		OccurredAt:    s.now().UTC(),
		Data: payloads.BookingEvent{
			BookingID:     booking.ID,
			UserID:        booking.UserID,
			HotelID:       booking.HotelID,
			RoomID:        booking.RoomID,
			CheckInDate:   booking.CheckInDate.Format(dateLayout),
			CheckOutDate:  booking.CheckOutDate.Format(dateLayout),
			NumberOfRooms: booking.NumberOfRooms,
			TotalPrice:    booking.TotalPrice,
			Status:        booking.Status,
			Reason:        reason,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit booking event")
	}
	return nil
}

func (s *service) detail(ctx context.Context, booking models.Booking) (*Detail, error) {
	out, err := s.details(ctx, []models.Booking{booking})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// details resolves hotel and room names with one lookup per aggregate.
func (s *service) details(ctx context.Context, rows []models.Booking) ([]Detail, error) {
	out := make([]Detail, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	hotelIDs := make([]uuid.UUID, 0, len(rows))
	roomIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		hotelIDs = append(hotelIDs, row.HotelID)
		roomIDs = append(roomIDs, row.RoomID)
	}
	hotels, err := s.catalog.HotelsByID(ctx, hotelIDs)
	if err != nil {
		return nil, err
	}
	rooms, err := s.catalog.RoomsByID(ctx, roomIDs)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out = append(out, Detail{
			Booking:   row,
			HotelName: hotels[row.HotelID].Name,
			RoomType:  rooms[row.RoomID].RoomType,
		})
	}
	return out, nil
}

func wrapRead(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}
