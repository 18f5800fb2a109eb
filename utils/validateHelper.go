package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "AU"

var validate = validator.New()

// ValidateStruct runs the `validate` tags on a request struct.
func ValidateStruct(s any) error {
	return validate.Struct(s)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err // Phone number is invalid
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}

	return nil // Phone number is valid for the specified country code
}

// NormalizePhoneNumber formats a phone number to E.164. Numbers that do not
// parse are returned trimmed and unchanged; the booking payload is pass-through
// data and a bad phone number must not block a checkout.
func NormalizePhoneNumber(phoneNumber, countryCode string) string {
	trimmed := strings.TrimSpace(phoneNumber)
	if trimmed == "" {
		return ""
	}
	p, err := libphonenumber.Parse(trimmed, countryCode)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return trimmed
	}
	return libphonenumber.Format(p, libphonenumber.E164)
}
