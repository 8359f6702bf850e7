// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package covid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// maxRetries bounds the extra attempts after the first failed fetch.
const maxRetries = 3

// retryableStatuses are the HTTP codes treated as transient:
// 429 Too Many Requests, 502 Bad Gateway, 503 Service Unavailable,
// 504 Gateway Timeout. Everything else fails the fetch immediately.
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// StatusError reports a non-2xx response from the upstream API.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d for %s", e.Code, e.URL)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return retryableStatuses[e.Code]
}

// Fetcher retrieves raw statistics payloads with a bounded, jittered retry
// loop around transient upstream failures. The sleep function and random
// source are injectable so the backoff is deterministic under test.
type Fetcher struct {
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error

	// rngMu guards rng: one fetcher serves concurrent requests.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewFetcher creates a fetcher with the given request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		sleep:      sleepContext,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithHTTPClient replaces the underlying HTTP client. Used in tests.
func (f *Fetcher) WithHTTPClient(c *http.Client) *Fetcher {
	f.httpClient = c
	return f
}

// WithSleep replaces the backoff sleep function. Used in tests.
func (f *Fetcher) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Fetcher {
	f.sleep = sleep
	return f
}

// WithRand replaces the jitter source. Used in tests.
func (f *Fetcher) WithRand(rng *rand.Rand) *Fetcher {
	f.rng = rng
	return f
}

// Fetch performs a GET against url and returns the response body.
//
// A retryable status (429/502/503/504) is retried up to 3 more times with a
// jittered, linearly scaled backoff. If every retry fails with a retryable
// status, the FIRST error is returned, not the last. A non-retryable status
// aborts immediately with that status, on the first attempt or any retry.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, firstErr := f.fetchOnce(ctx, url)
	if firstErr == nil {
		return body, nil
	}

	var statusErr *StatusError
	if !errors.As(firstErr, &statusErr) || !statusErr.Retryable() {
		return nil, firstErr
	}

	slog.Info("transient upstream failure, retrying with backoff",
		"url", url,
		"status", statusErr.Code,
	)

	for retry := 1; retry <= maxRetries; retry++ {
		delay := f.backoffDelay(retry)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("retry cancelled: %w", err)
		}

		slog.Info("retrying upstream fetch",
			"url", url,
			"attempt", retry,
			"waited", delay,
		)

		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}

		var retryErr *StatusError
		if errors.As(err, &retryErr) && !retryErr.Retryable() {
			return nil, err
		}
	}

	// Retries exhausted; surface the original failure.
	return nil, firstErr
}

// fetchOnce performs a single GET and classifies the response.
func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch statistics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}

// backoffDelay computes the wait before retry attempt n (1-based):
// n * ((1 + randInt(1,5)) * randFloat()) seconds. The random factors keep
// concurrent callers from retrying in lockstep.
func (f *Fetcher) backoffDelay(attempt int) time.Duration {
	f.rngMu.Lock()
	defer f.rngMu.Unlock()
	base := 1 + (1 + f.rng.Intn(5)) // 1 + randInt(1,5)
	seconds := float64(attempt) * float64(base) * f.rng.Float64()
	return time.Duration(seconds * float64(time.Second))
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
