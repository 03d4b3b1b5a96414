package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/hotelbooker-backend/pkg/errors"
)

type sampleRequest struct {
	HotelID string `json:"hotel_id" validate:"required,uuid"`
	CheckIn string `json:"check_in_date" validate:"required,datetime=2006-01-02"`
	Guests  int    `json:"number_of_guests" validate:"min=1"`
	Email   string `json:"guest_email" validate:"required,email"`
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	body := `{"hotel_id":"nope","check_in_date":"01/02/2026","number_of_guests":0,"guest_email":"x"}`
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))

	var dest sampleRequest
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid UUID", details["hotel_id"])
	assert.Equal(t, "must be a date in YYYY-MM-DD format", details["check_in_date"])
	assert.Equal(t, "must be at least 1", details["number_of_guests"])
	assert.Equal(t, "must be a valid email", details["guest_email"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"surprise":true}`))
	var dest sampleRequest
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseHelpers(t *testing.T) {
	d, err := ParseDate("check_in_date", "2026-11-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-11-01", d.Format(DateLayout))

	_, err = ParseDate("check_in_date", "tomorrow")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseUUID("bookingId", "123")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	assert.Equal(t, "abc", SanitizeString("  abcdef ", 3))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "late check-in\nplease", SanitizeString(" late check-in\npl\x00ease\x07 ", 0))
	assert.Equal(t, "café", SanitizeString("café au lait", 4))
	assert.Equal(t, "", SanitizeString(" \x1b ", 10))
}
