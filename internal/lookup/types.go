// Package lookup talks to the external phone validation API and normalizes its answers.
package lookup

import (
	"context"
	"errors"
)

var (
	// ErrServiceUnavailable covers transport failures, timeouts, upstream errors and an open circuit.
	ErrServiceUnavailable = errors.New("lookup service unavailable")
	// ErrInvalidNumber means the upstream answered and the number is not a valid phone number.
	ErrInvalidNumber = errors.New("invalid phone number")
)

// Gateway validates a phone number against the external API.
type Gateway interface {
	Validate(ctx context.Context, phone string) (*RawResponse, error)
}

// RawResponse is the upstream payload as received.
type RawResponse struct {
	Valid               bool   `json:"valid"`
	Number              string `json:"number"`
	LocalFormat         string `json:"local_format"`
	InternationalFormat string `json:"international_format"`
	CountryPrefix       string `json:"country_prefix"`
	CountryCode         string `json:"country_code"`
	CountryName         string `json:"country_name"`
	Location            string `json:"location"`
	Carrier             string `json:"carrier"`
	LineType            string `json:"line_type"`
}

type apiErrorEnvelope struct {
	Success *bool `json:"success"`
	Error   *struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error"`
}
