package inventory

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/hotelbooker-backend/pkg/db/dbtest"
	"github.com/angelmondragon/hotelbooker-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
	"github.com/angelmondragon/hotelbooker-backend/pkg/logger"
	"github.com/angelmondragon/hotelbooker-backend/pkg/metrics"
)

func newTestLedger(t *testing.T) (Ledger, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	l, err := NewLedger(conn, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}), metrics.NewBookingMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	return l, conn
}

func seedRoom(t *testing.T, conn *gorm.DB, total, available int) uuid.UUID {
	t.Helper()
	room := models.Room{
		HotelID:        uuid.New(),
		RoomType:       "Deluxe King",
		PricePerNight:  decimal.NewFromInt(100),
		TotalUnits:     total,
		AvailableUnits: available,
	}
	require.NoError(t, conn.Create(&room).Error)
	return room.ID
}

func availableUnits(t *testing.T, conn *gorm.DB, roomID uuid.UUID) int {
	t.Helper()
	var room models.Room
	require.NoError(t, conn.First(&room, "id = ?", roomID).Error)
	return room.AvailableUnits
}

func TestReserveDecrementsAvailableUnits(t *testing.T) {
	l, conn := newTestLedger(t)
	roomID := seedRoom(t, conn, 5, 5)

	remaining, err := l.Reserve(context.Background(), nil, roomID, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
	assert.Equal(t, 2, availableUnits(t, conn, roomID))
}

func TestReserveInsufficientLeavesCounterUntouched(t *testing.T) {
	l, conn := newTestLedger(t)
	roomID := seedRoom(t, conn, 5, 2)

	_, err := l.Reserve(context.Background(), nil, roomID, 3)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientInventory))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, details["available"])
	assert.Equal(t, 2, availableUnits(t, conn, roomID))
}

func TestReserveUnknownRoom(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.Reserve(context.Background(), nil, uuid.New(), 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestReserveRejectsNonPositiveCount(t *testing.T) {
	l, conn := newTestLedger(t)
	roomID := seedRoom(t, conn, 5, 5)

	for _, count := range []int{0, -2} {
		_, err := l.Reserve(context.Background(), nil, roomID, count)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	}
	assert.Equal(t, 5, availableUnits(t, conn, roomID))
}

func TestReserveThenReleaseRoundTrips(t *testing.T) {
	l, conn := newTestLedger(t)
	roomID := seedRoom(t, conn, 8, 6)
	ctx := context.Background()

	for n := 1; n <= 6; n++ {
		_, err := l.Reserve(ctx, nil, roomID, n)
		require.NoError(t, err)
		after, err := l.Release(ctx, nil, roomID, n)
		require.NoError(t, err)
		assert.Equal(t, 6, after, "round trip of %d units", n)
	}
}

func TestReleaseBeyondTotalIsConsistencyError(t *testing.T) {
	l, conn := newTestLedger(t)
	roomID := seedRoom(t, conn, 5, 4)

	_, err := l.Release(context.Background(), nil, roomID, 2)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
	assert.Equal(t, 4, availableUnits(t, conn, roomID), "over-release must not be clamped")
}

func TestReleaseUnknownRoom(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.Release(context.Background(), nil, uuid.New(), 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestReserveJoinsCallerTransaction(t *testing.T) {
	l, conn := newTestLedger(t)
	roomID := seedRoom(t, conn, 5, 5)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if _, err := l.Reserve(context.Background(), tx, roomID, 4); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeInternal, "persist failed")
	})
	require.Error(t, err)
	assert.Equal(t, 5, availableUnits(t, conn, roomID), "rollback must undo the reservation")
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	l, conn := newTestLedger(t)
	roomID := seedRoom(t, conn, 7, 7)

	const workers = 24
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		reserved     int
		insufficient int
	)
	for i := 0; i < workers; i++ {
		count := 1 + i%2
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Reserve(context.Background(), nil, roomID, count)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				reserved += count
			case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientInventory):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	remaining := availableUnits(t, conn, roomID)
	assert.Equal(t, 7, reserved+remaining, "units reserved plus units left must equal the starting stock")
	assert.GreaterOrEqual(t, remaining, 0)
	assert.LessOrEqual(t, remaining, 1, "availability must be exhausted down to less than the smallest request that failed")
	assert.Positive(t, insufficient)
}

func TestInterleavedOperationsStayWithinBounds(t *testing.T) {
	l, conn := newTestLedger(t)
	const total = 6
	roomID := seedRoom(t, conn, total, total)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	held := 0
	for i := 0; i < 200; i++ {
		count := 1 + rng.Intn(3)
		if rng.Intn(2) == 0 {
			if _, err := l.Reserve(ctx, nil, roomID, count); err == nil {
				held += count
			} else {
				require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientInventory))
			}
		} else if held >= count {
			_, err := l.Release(ctx, nil, roomID, count)
			require.NoError(t, err)
			held -= count
		}

		available := availableUnits(t, conn, roomID)
		require.GreaterOrEqual(t, available, 0)
		require.LessOrEqual(t, available, total)
		require.Equal(t, total-held, available)
	}
}
