package korail

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionExpired means the backend no longer recognizes the
	// session. Recovered by re-authenticating, never by retrying.
	ErrSessionExpired = errors.New("session expired")

	// ErrSeatUnavailable means the requested seat was gone by the time
	// the reservation call landed.
	ErrSeatUnavailable = errors.New("seat unavailable")

	// ErrRejected is a reservation refusal that is neither a session
	// problem nor a plain sold-out, e.g. an account-level block.
	ErrRejected = errors.New("reservation rejected")

	// ErrNoResults is the backend's way of saying a listing is empty.
	ErrNoResults = errors.New("no results")
)

// Error codes the backend returns for an expired or missing session.
var sessionExpiredCodes = map[string]bool{
	"P058":      true,
	"WRT300004": true,
	"WRD000003": true,
}

// Error codes for "nothing found" on listing endpoints.
var noResultCodes = map[string]bool{
	"P100":      true,
	"WRG000000": true,
	"WRD000061": true,
	"WRT300005": true,
}

// APIError is a response with strResult=FAIL.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Is classifies FAIL responses against the sentinel errors so callers can
// branch with errors.Is without losing the raw code and message.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrSessionExpired:
		return sessionExpiredCodes[strings.TrimSpace(e.Code)]
	case ErrNoResults:
		if noResultCodes[strings.TrimSpace(e.Code)] {
			return true
		}
		return strings.Contains(e.Message, "예약") && strings.Contains(e.Message, "없")
	case ErrSeatUnavailable:
		if strings.Contains(e.Message, "매진") {
			return true
		}
		hasSeatWord := strings.Contains(e.Message, "좌석") || strings.Contains(e.Message, "잔여석") || strings.Contains(e.Message, "입석")
		return hasSeatWord && strings.Contains(e.Message, "없")
	}
	return false
}

// NetworkError is a transport-level failure: the in-page fetch rejected or
// the backend answered with a non-2xx status. Transient.
type NetworkError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("request to %s failed: status %d", e.Endpoint, e.Status)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError means the backend answered 2xx with a body that does not
// match the expected contract. Not retryable.
type ProtocolError struct {
	Endpoint string
	Detail   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected response from %s: %s", e.Endpoint, e.Detail)
}

// IsTransient reports whether the error is worth the same call again
// after a pause.
func IsTransient(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
