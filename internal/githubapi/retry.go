package githubapi

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// retryTransport retries failed API calls at the level of individual
// HTTP requests. Any response with a status of 400 or above is retried
// unless the status is in the exempt set.
type retryTransport struct {
	base    http.RoundTripper
	retries int
	exempt  map[int]bool
	sleep   func(time.Duration)
}

func newRetryTransport(base http.RoundTripper, retries int, exemptCodes []int) *retryTransport {
	if len(exemptCodes) == 0 {
		exemptCodes = defaultRetryExemptStatusCodes
	}
	exempt := make(map[int]bool, len(exemptCodes))
	for _, code := range exemptCodes {
		exempt[code] = true
	}
	return &retryTransport{
		base:    base,
		retries: retries,
		exempt:  exempt,
		sleep:   time.Sleep,
	}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := rewindBody(req); err != nil {
				return resp, err
			}
			t.sleep(time.Duration(attempt) * time.Second)
		}

		resp, err = t.base.RoundTrip(req)
		if err != nil {
			if attempt >= t.retries {
				return nil, err
			}
			continue
		}
		if resp.StatusCode < 400 || t.exempt[resp.StatusCode] || attempt >= t.retries {
			return resp, nil
		}

		// Drain the failed response so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}

func rewindBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to rewind request body for retry: %w", err)
	}
	req.Body = body
	return nil
}
