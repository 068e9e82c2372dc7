package origin

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorClass represents a classification of origin failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures: refused connections,
	// DNS errors and transport-level timeouts.
	ErrorClassNetwork ErrorClass = "network"
)

// OriginError describes a failed origin round trip.
type OriginError struct {
	URL        string
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *OriginError) Error() string {
	return fmt.Sprintf("origin %s error: %s: %v", e.ErrorClass, e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *OriginError) Unwrap() error {
	return e.Err
}

// ClassifyStatus maps an origin status code to an ErrorClass. Non-error
// statuses yield the empty class.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// ErrorResponse synthesizes the 502 returned when the origin cannot be
// reached. The body is {"error": "<message>"} and the CORS header is set so
// browser clients can read it.
func ErrorResponse(err error) *http.Response {
	msg := "origin unreachable"
	if err != nil {
		msg = err.Error()
	}
	body, _ := json.Marshal(map[string]string{"error": msg})

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set(HeaderAllowOrigin, "*")

	return newResponse(http.StatusBadGateway, header, body)
}
