package payments

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
)

const defaultExponent = 2

// MaxAmount is the exclusive upper bound on a single payment in major units.
// payments.amount is numeric(18,3), which holds up to 15 integer digits.
var MaxAmount = decimal.New(1, 12)

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// currencyExponents lists currencies whose minor unit is not 1/100.
var currencyExponents = map[string]int32{
	"bif": 0, "clp": 0, "djf": 0, "gnf": 0, "jpy": 0, "kmf": 0, "krw": 0,
	"mga": 0, "pyg": 0, "rwf": 0, "ugx": 0, "vnd": 0, "vuv": 0, "xaf": 0,
	"xof": 0, "xpf": 0,
	"bhd": 3, "iqd": 3, "jod": 3, "kwd": 3, "lyd": 3, "omr": 3, "tnd": 3,
}

// CurrencyExponent returns the number of decimal places in currency's minor unit.
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToLower(currency)]; ok {
		return exp
	}
	return defaultExponent
}

// ToMinorUnits converts amount into the processor's integer representation.
// Amounts carrying more precision than the currency supports are rejected.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	exp := CurrencyExponent(currency)
	scaled := amount.Shift(exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, pkgerrors.FieldErrors("invalid amount", map[string]string{
			"amount": "has more decimal places than the currency allows",
		})
	}
	if !scaled.IsPositive() {
		return 0, pkgerrors.FieldErrors("invalid amount", map[string]string{
			"amount": "must be greater than zero",
		})
	}
	if !amount.LessThan(MaxAmount) || scaled.GreaterThan(maxMinorUnits) {
		return 0, pkgerrors.FieldErrors("invalid amount", map[string]string{
			"amount": "must be less than " + MaxAmount.String(),
		})
	}
	return scaled.IntPart(), nil
}

// FromMinorUnits converts a processor amount back into a decimal.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -CurrencyExponent(currency))
}
