// Package phone validates and normalizes contact numbers.
package phone

import (
	"errors"
	"strings"

	"github.com/ttacon/libphonenumber"
)

var ErrInvalid = errors.New("phone number is not valid")

// Normalize parses raw in the default region and returns it in E.164 form.
// An empty input is returned unchanged.
func Normalize(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	p, err := libphonenumber.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", ErrInvalid
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", ErrInvalid
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

// Valid reports whether raw parses as a valid number in region.
func Valid(raw, region string) bool {
	n, err := Normalize(raw, region)
	return err == nil && n != ""
}
