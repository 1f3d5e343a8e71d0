package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassTransport covers network failures, non-success HTTP
	// statuses, and response bodies that cannot be read or parsed as JSON.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassProtocol covers responses that parse but violate the
	// expected wire contract (missing or invalid fields).
	ErrorClassProtocol ErrorClass = "protocol"

	// ErrorClassCancelled covers cooperative cancellation between requests.
	ErrorClassCancelled ErrorClass = "cancelled"
)

// TransportError is returned when a request could not be completed:
// the connection failed, the server answered with a non-success status,
// or the body could not be read or decoded as JSON.
type TransportError struct {
	// URL is the request URL.
	URL string

	// StatusCode is the HTTP status, or 0 when the request never completed.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("transport error (status %d) for %s: %v", e.StatusCode, e.URL, e.Err)
		}
		return fmt.Sprintf("transport error (status %d) for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned when a response parses as JSON but violates the
// wire contract: a required field is missing, the count is negative or
// non-numeric, or the item list is not an array.
type ProtocolError struct {
	// URL is the request URL.
	URL string

	// Field names the violating field (e.g. "filteredCount", "projects").
	Field string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error for %s: field %q: %v", e.URL, e.Field, e.Err)
	}
	return fmt.Sprintf("protocol error for %s: field %q violates the wire contract", e.URL, e.Field)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Classify maps an error to its ErrorClass for logging and metrics labels.
// Returns an empty class for nil or unrecognized errors.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) {
		return ErrorClassTransport
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return ErrorClassProtocol
	}
	return ""
}
