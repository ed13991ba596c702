package fetch

import (
	"errors"
	"fmt"
)

// InternalError means the fetch service failed or answered with something unexpected.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("feed request internal error: %s", e.Message)
}

type ParseError struct {
	URL string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("feed request for %s returned an unparseable response", e.URL)
}

// FetchError covers failed fetches, including invalid SSL certificates and refused large feeds.
type FetchError struct {
	URL    string
	Reason string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %s", e.URL, e.Reason)
}

type BadStatusCodeError struct {
	URL        string
	StatusCode int
}

func (e *BadStatusCodeError) Error() string {
	return fmt.Sprintf("feed %s returned bad status code %d", e.URL, e.StatusCode)
}

type TimeoutError struct {
	URL string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("feed request for %s timed out", e.URL)
}

func IsInternalError(err error) bool {
	var target *InternalError
	return errors.As(err, &target)
}

func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

func IsFetchError(err error) bool {
	var target *FetchError
	return errors.As(err, &target)
}

func IsBadStatusCodeError(err error) bool {
	var target *BadStatusCodeError
	return errors.As(err, &target)
}

func IsTimeoutError(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// IsRequestError reports whether err belongs to the fetch error taxonomy.
func IsRequestError(err error) bool {
	return IsInternalError(err) || IsParseError(err) || IsFetchError(err) ||
		IsBadStatusCodeError(err) || IsTimeoutError(err)
}
