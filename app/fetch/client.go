package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/metrics"
)

type Status string

const (
	StatusSuccess        Status = "SUCCESS"
	StatusPending        Status = "PENDING"
	StatusMatchedHash    Status = "MATCHED_HASH"
	statusInternalError  Status = "INTERNAL_ERROR"
	statusParseError     Status = "PARSE_ERROR"
	statusBadStatusCode  Status = "BAD_STATUS_CODE"
	statusFetchError     Status = "FETCH_ERROR"
	statusFetchTimeout   Status = "FETCH_TIMEOUT"
	statusInvalidSSLCert Status = "INVALID_SSL_CERTIFICATE"
	statusRefusedLarge   Status = "REFUSED_LARGE_FEED"
	requestsPath                = "/v1/feed-requests"
	DefaultRetries              = 2
	externalFetchRetries        = 3
	defaultTimeout              = 30 * time.Second
	defaultRetryDelay           = 500 * time.Millisecond
)

type LookupDetails struct {
	Key     string            `json:"key"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type Options struct {
	ExecuteFetch            bool
	ExecuteFetchIfNotExists bool
	ExecuteFetchIfStale     bool
	HashToCompare           string
	LookupDetails           *LookupDetails
	Retries                 *int
}

// Result is a non-error outcome. Body and Hash are set only for StatusSuccess.
type Result struct {
	Status     Status
	Body       string
	Hash       string
	StatusCode int
}

type request struct {
	URL                     string         `json:"url"`
	ExecuteFetch            bool           `json:"executeFetch"`
	ExecuteFetchIfNotExists bool           `json:"executeFetchIfNotExists"`
	ExecuteFetchIfStale     bool           `json:"executeFetchIfStale"`
	HashToCompare           string         `json:"hashToCompare,omitempty"`
	LookupDetails           *LookupDetails `json:"lookupDetails,omitempty"`
}

type response struct {
	RequestStatus Status `json:"requestStatus"`
	Response      *struct {
		Body       *string `json:"body"`
		Hash       string  `json:"hash"`
		StatusCode int     `json:"statusCode"`
	} `json:"response"`
}

type ClientOptions struct {
	Retries    int
	Timeout    time.Duration
	UserAgent  string
	RetryDelay time.Duration
}

// Client talks to the upstream feed fetch service.
type Client struct {
	host       string
	httpClient *http.Client
	retries    int
	userAgent  string
	retryDelay time.Duration
}

func NewClient(host string, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Retries < 0 {
		opts.Retries = DefaultRetries
	}

	return &Client{
		host:       strings.TrimRight(host, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		retries:    opts.Retries,
		userAgent:  opts.UserAgent,
		retryDelay: opts.RetryDelay,
	}
}

// retryableError marks failures worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// FetchFeed requests url through the fetch service and maps the answer to a Result
// or one of the typed request errors.
func (c *Client) FetchFeed(ctx context.Context, url string, opts Options) (*Result, error) {
	retries := c.retries
	if opts.Retries != nil {
		retries = *opts.Retries
	}

	payload, err := json.Marshal(request{
		URL:                     url,
		ExecuteFetch:            opts.ExecuteFetch,
		ExecuteFetchIfNotExists: opts.ExecuteFetchIfNotExists,
		ExecuteFetchIfStale:     opts.ExecuteFetchIfStale,
		HashToCompare:           opts.HashToCompare,
		LookupDetails:           opts.LookupDetails,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode feed request: %w", err)
	}

	var (
		res     *response
		lastErr error
	)

	err = retry.Do(
		func() error {
			res, lastErr = c.send(ctx, payload)
			return lastErr
		},
		retry.Attempts(uint(retries+1)),
		retry.Delay(c.retryDelay),
		retry.MaxJitter(c.retryDelay*2),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			slog.Debug("Retrying feed request", "url", url, "attempt", n+1, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			var r *retryableError
			return errors.As(err, &r)
		}),
	)
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		var r *retryableError
		if errors.As(lastErr, &r) {
			lastErr = r.err
		}
		if !IsRequestError(lastErr) {
			lastErr = &InternalError{Message: lastErr.Error()}
		}
		metrics.FeedFetchesTotal.WithLabelValues(string(statusInternalError)).Inc()
		return nil, lastErr
	}

	metrics.FeedFetchesTotal.WithLabelValues(string(res.RequestStatus)).Inc()
	return mapResponse(url, res)
}

func (c *Client) send(ctx context.Context, payload []byte) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+requestsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &InternalError{Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{err: &InternalError{Message: fmt.Sprintf("failed to reach fetch service: %v", err)}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: &InternalError{Message: fmt.Sprintf("failed to read response: %v", err)}}
	}

	if resp.StatusCode >= 500 {
		return nil, &retryableError{err: &InternalError{Message: fmt.Sprintf("fetch service returned status %d", resp.StatusCode)}}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &InternalError{Message: fmt.Sprintf("fetch service returned status %d: %s", resp.StatusCode, truncate(string(body), 200))}
	}

	var res response
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &InternalError{Message: fmt.Sprintf("failed to decode response: %v", err)}
	}
	return &res, nil
}

func mapResponse(url string, res *response) (*Result, error) {
	statusCode := 0
	if res.Response != nil {
		statusCode = res.Response.StatusCode
	}

	switch res.RequestStatus {
	case StatusSuccess:
		if res.Response == nil || res.Response.Body == nil {
			return nil, &InternalError{Message: "successful response is missing a body"}
		}
		return &Result{
			Status:     StatusSuccess,
			Body:       *res.Response.Body,
			Hash:       res.Response.Hash,
			StatusCode: statusCode,
		}, nil
	case StatusPending:
		return &Result{Status: StatusPending}, nil
	case StatusMatchedHash:
		return &Result{Status: StatusMatchedHash, StatusCode: statusCode}, nil
	case statusParseError:
		return nil, &ParseError{URL: url}
	case statusBadStatusCode:
		return nil, &BadStatusCodeError{URL: url, StatusCode: statusCode}
	case statusFetchError:
		return nil, &FetchError{URL: url, Reason: "fetch failed"}
	case statusInvalidSSLCert:
		return nil, &FetchError{URL: url, Reason: "invalid SSL certificate"}
	case statusRefusedLarge:
		return nil, &FetchError{URL: url, Reason: "feed is too large"}
	case statusFetchTimeout:
		return nil, &TimeoutError{URL: url}
	case statusInternalError:
		return nil, &InternalError{Message: "fetch service reported an internal error"}
	}

	return nil, &InternalError{Message: fmt.Sprintf("unexpected request status %q", res.RequestStatus)}
}

// FetchExternal loads a page for external content injection. Any failure is
// reported as a missing body.
func (c *Client) FetchExternal(ctx context.Context, url string) feed.ExternalResponse {
	retries := externalFetchRetries
	res, err := c.FetchFeed(ctx, url, Options{ExecuteFetchIfNotExists: true, Retries: &retries})
	if err != nil {
		var bad *BadStatusCodeError
		if errors.As(err, &bad) {
			code := bad.StatusCode
			return feed.ExternalResponse{StatusCode: &code}
		}
		slog.Debug("External content fetch failed", "url", url, "error", err)
		return feed.ExternalResponse{}
	}
	if res.Status != StatusSuccess {
		return feed.ExternalResponse{}
	}

	body := res.Body
	code := res.StatusCode
	return feed.ExternalResponse{Body: &body, StatusCode: &code}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
