package bookings

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateOnly truncates t to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Nights is the whole number of calendar days between check-in and check-out.
func Nights(checkIn, checkOut time.Time) int {
	return int(DateOnly(checkOut).Sub(DateOnly(checkIn)).Hours() / 24)
}

// TotalPrice is pricePerNight × nights × rooms, computed exactly.
func TotalPrice(pricePerNight decimal.Decimal, nights, rooms int) decimal.Decimal {
	return pricePerNight.Mul(decimal.NewFromInt(int64(nights))).Mul(decimal.NewFromInt(int64(rooms)))
}
