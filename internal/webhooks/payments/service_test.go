package paymentwebhook

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/hotelbooker-backend/internal/bookings"
	"github.com/angelmondragon/hotelbooker-backend/internal/catalog"
	"github.com/angelmondragon/hotelbooker-backend/internal/inventory"
	"github.com/angelmondragon/hotelbooker-backend/internal/payments"
	"github.com/angelmondragon/hotelbooker-backend/pkg/db"
	"github.com/angelmondragon/hotelbooker-backend/pkg/db/dbtest"
	"github.com/angelmondragon/hotelbooker-backend/pkg/db/models"
	"github.com/angelmondragon/hotelbooker-backend/pkg/enums"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
	"github.com/angelmondragon/hotelbooker-backend/pkg/metrics"
	"github.com/angelmondragon/hotelbooker-backend/pkg/outbox"
)

type webhookFixture struct {
	conn     *gorm.DB
	svc      *Service
	bookings bookings.Service
	userID   uuid.UUID
	booking  *bookings.Detail
	payment  models.Payment
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	m := metrics.NewBookingMetrics(prometheus.NewRegistry())
	txRunner := db.Wrap(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	ledger, err := inventory.NewLedger(conn, logg, m)
	require.NoError(t, err)
	bookingSvc, err := bookings.NewService(bookings.ServiceParams{
		Repo:    bookings.NewRepository(conn),
		Catalog: catalog.NewRepository(conn),
		Ledger:  ledger,
		Tx:      txRunner,
		Outbox:  emitter,
		Logger:  logg,
	})
	require.NoError(t, err)

	reconciler, err := payments.NewReconciler(payments.NewRepository(conn), bookingSvc, emitter, logg, nil)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Reconciler:        reconciler,
		TransactionRunner: txRunner,
		Logger:            logg,
		Metrics:           m,
	})
	require.NoError(t, err)

	hotel := models.Hotel{Name: "Harbor View"}
	require.NoError(t, conn.Create(&hotel).Error)
	room := models.Room{HotelID: hotel.ID, RoomType: "Suite", PricePerNight: decimal.NewFromInt(300), MaxGuests: 2, TotalUnits: 5, AvailableUnits: 5}
	require.NoError(t, conn.Create(&room).Error)

	userID := uuid.New()
	checkIn := time.Now().UTC().AddDate(0, 0, 3)
	detail, err := bookingSvc.Create(context.Background(), bookings.CreateInput{
		UserID:   userID,
		HotelID:  hotel.ID,
		RoomID:   room.ID,
		CheckIn:  checkIn,
		CheckOut: checkIn.AddDate(0, 0, 1),
		Guests:   1,
		Rooms:    1,
		Guest:    bookings.GuestInfo{Name: "Grace", Email: "grace@example.com"},
	})
	require.NoError(t, err)

	bookingID := detail.ID
	payment := models.Payment{
		BookingID:         &bookingID,
		UserID:            userID,
		ExternalReference: "pi_abc",
		Amount:            decimal.NewFromInt(300),
		AmountMinor:       30000,
		Currency:          "usd",
		Status:            enums.PaymentStatusPending,
	}
	require.NoError(t, conn.Create(&payment).Error)

	return &webhookFixture{conn: conn, svc: svc, bookings: bookingSvc, userID: userID, booking: detail, payment: payment}
}

func (f *webhookFixture) reload(t *testing.T) (models.Payment, models.Booking) {
	t.Helper()
	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "id = ?", f.payment.ID).Error)
	var booking models.Booking
	require.NoError(t, f.conn.First(&booking, "id = ?", f.booking.ID).Error)
	return payment, booking
}

func (f *webhookFixture) paymentEvents(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).
		Where("aggregate_id = ? AND event_type = ?", f.payment.ID, enums.EventPaymentStatusChanged).
		Count(&count).Error)
	return count
}

func TestSucceededConfirmsBookingAndRedeliveryIsNoop(t *testing.T) {
	f := newWebhookFixture(t)
	event := &payments.Event{ID: "evt_1", Kind: payments.EventSucceeded, Reference: "pi_abc"}

	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
	payment, booking := f.reload(t)
	assert.Equal(t, enums.PaymentStatusSucceeded, payment.Status)
	assert.Equal(t, enums.BookingStatusConfirmed, booking.Status)
	assert.EqualValues(t, 1, f.paymentEvents(t))

	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
	again, booking := f.reload(t)
	assert.Equal(t, enums.PaymentStatusSucceeded, again.Status)
	assert.Equal(t, payment.UpdatedAt.UTC(), again.UpdatedAt.UTC())
	assert.Equal(t, enums.BookingStatusConfirmed, booking.Status)
	assert.EqualValues(t, 1, f.paymentEvents(t))
}

func TestStaleProcessingAfterSucceededIsIgnored(t *testing.T) {
	f := newWebhookFixture(t)
	require.NoError(t, f.svc.HandleEvent(context.Background(), &payments.Event{ID: "evt_1", Kind: payments.EventSucceeded, Reference: "pi_abc"}))
	require.NoError(t, f.svc.HandleEvent(context.Background(), &payments.Event{ID: "evt_0", Kind: payments.EventProcessing, Reference: "pi_abc"}))

	payment, _ := f.reload(t)
	assert.Equal(t, enums.PaymentStatusSucceeded, payment.Status)
}

func TestFailedRecordsReason(t *testing.T) {
	f := newWebhookFixture(t)
	require.NoError(t, f.svc.HandleEvent(context.Background(), &payments.Event{ID: "evt_2", Kind: payments.EventPaymentFailed, Reference: "pi_abc"}))

	payment, booking := f.reload(t)
	assert.Equal(t, enums.PaymentStatusFailed, payment.Status)
	require.NotNil(t, payment.FailureReason)
	assert.Equal(t, "Payment failed", *payment.FailureReason)
	assert.Equal(t, enums.BookingStatusPending, booking.Status)

	require.NoError(t, f.svc.HandleEvent(context.Background(), &payments.Event{ID: "evt_3", Kind: payments.EventSucceeded, Reference: "pi_abc"}))
	payment, _ = f.reload(t)
	assert.Equal(t, enums.PaymentStatusFailed, payment.Status)
}

func TestCanceledUsesDefaultReason(t *testing.T) {
	f := newWebhookFixture(t)
	require.NoError(t, f.svc.HandleEvent(context.Background(), &payments.Event{ID: "evt_4", Kind: payments.EventCanceled, Reference: "pi_abc"}))

	payment, _ := f.reload(t)
	assert.Equal(t, enums.PaymentStatusCancelled, payment.Status)
	require.NotNil(t, payment.FailureReason)
	assert.Equal(t, "Payment was canceled", *payment.FailureReason)
}

func TestRefundAfterSuccess(t *testing.T) {
	f := newWebhookFixture(t)
	require.NoError(t, f.svc.HandleEvent(context.Background(), &payments.Event{ID: "evt_5", Kind: payments.EventRefunded, Reference: "pi_abc"}))
	payment, _ := f.reload(t)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)

	require.NoError(t, f.svc.HandleEvent(context.Background(), &payments.Event{ID: "evt_6", Kind: payments.EventSucceeded, Reference: "pi_abc"}))
	require.NoError(t, f.svc.HandleEvent(context.Background(), &payments.Event{ID: "evt_7", Kind: payments.EventRefunded, Reference: "pi_abc"}))
	payment, _ = f.reload(t)
	assert.Equal(t, enums.PaymentStatusRefunded, payment.Status)
}

func TestUnknownReferenceIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)
	err := f.svc.HandleEvent(context.Background(), &payments.Event{ID: "evt_8", Kind: payments.EventSucceeded, Reference: "pi_unknown"})
	require.NoError(t, err)

	payment, booking := f.reload(t)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
	assert.Equal(t, enums.BookingStatusPending, booking.Status)
	assert.Zero(t, f.paymentEvents(t))
}

func TestUnknownKindIsIgnored(t *testing.T) {
	f := newWebhookFixture(t)
	err := f.svc.HandleEvent(context.Background(), &payments.Event{ID: "evt_9", Kind: payments.EventUnknown, Type: "customer.created"})
	require.NoError(t, err)
	payment, _ := f.reload(t)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
}

func TestSucceededForCancelledBookingKeepsBookingCancelled(t *testing.T) {
	f := newWebhookFixture(t)
	_, err := f.bookings.Cancel(context.Background(), f.booking.ID, f.userID)
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleEvent(context.Background(), &payments.Event{ID: "evt_10", Kind: payments.EventSucceeded, Reference: "pi_abc"}))
	payment, booking := f.reload(t)
	assert.Equal(t, enums.PaymentStatusSucceeded, payment.Status)
	assert.Equal(t, enums.BookingStatusCancelled, booking.Status)
}

type failingReconciler struct{}

func (failingReconciler) Apply(context.Context, *gorm.DB, payments.StatusUpdate) (payments.Outcome, error) {
	return payments.Outcome{}, errors.New("database unavailable")
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func TestProcessingFailureIsReturned(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Reconciler:        failingReconciler{},
		TransactionRunner: passthroughTx{},
		Logger:            logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)

	err = svc.HandleEvent(context.Background(), &payments.Event{ID: "evt_11", Kind: payments.EventSucceeded, Reference: "pi_abc"})
	require.Error(t, err)

	err = svc.HandleEvent(context.Background(), &payments.Event{ID: "evt_12", Kind: payments.EventSucceeded})
	require.Error(t, err)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
