package feed

import (
	"errors"
	"fmt"
	"time"
)

// InvalidFeedError is returned when the input is not an RSS, Atom or JSON feed.
type InvalidFeedError struct {
	Reason string
}

func (e *InvalidFeedError) Error() string {
	return fmt.Sprintf("invalid feed: %s", e.Reason)
}

type FeedParseTimeoutError struct {
	Timeout time.Duration
}

func (e *FeedParseTimeoutError) Error() string {
	return fmt.Sprintf("feed parse timed out after %s", e.Timeout)
}

func IsInvalidFeedError(err error) bool {
	var target *InvalidFeedError
	return errors.As(err, &target)
}

func IsFeedParseTimeoutError(err error) bool {
	var target *FeedParseTimeoutError
	return errors.As(err, &target)
}
