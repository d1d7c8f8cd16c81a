package qdb

import (
	"errors"
	"fmt"
)

// TransportError indicates the HTTP call to the query endpoint failed:
// either the connection could not be established (common while an
// instance is still starting) or the server answered with a non-200
// status. Callers polling for consistency treat it as retryable.
type TransportError struct {
	// Status is the HTTP status code, or 0 if no response was received.
	Status int

	// Err is the underlying transport error, if any.
	Err error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("query endpoint returned status %d", e.Status)
	}
	return fmt.Sprintf("query endpoint unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedResponseError indicates the endpoint answered 200 but the
// payload could not be decoded. The raw payload is carried in the
// message so a broken response is never silently discarded.
type MalformedResponseError struct {
	// Payload is the raw response body.
	Payload []byte

	// Err is the decode error.
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("could not parse response %q: %v", e.Payload, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// QueryError indicates the server reported a semantic query failure
// (e.g. table does not exist) even though the transport succeeded.
type QueryError struct {
	// Message is the server-reported error string.
	Message string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %s", e.Message)
}

// IsTransportError reports whether err is a TransportError.
// Uses errors.As to handle wrapped errors.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsQueryError reports whether err is a server-reported QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// IsMalformedResponse reports whether err is a MalformedResponseError.
func IsMalformedResponse(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}
