// Package media implements the §4.C capability contracts declared in
// internal/gateway against real external tools: ffmpeg/ffprobe subprocesses
// for transcode/scene-detect/frame-extract, an in-process perceptual hash,
// and a shared OpenAI-compatible HTTP client for transcribe/vision/embed.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"video-worker/internal/domain"
)

// httpTimeout bounds a single attempt; the retry wrapper may make several.
const httpTimeout = 60 * time.Second

// apiError wraps a non-2xx HTTP response and records whether the status
// code warrants a retry, per §7: timeouts/5xx/429 retryable, other 4xx
// fatal-for-item.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.status, e.body)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// doJSON executes req, retrying with exponential backoff on transport
// errors, timeouts, 429s and 5xx. It returns the response body on success,
// and on exhaustion classifies the failure per §7: a non-retryable status
// code is domain.Fatal, everything else (timeouts, transport errors, an
// exhausted retryable status) is domain.Retryable.
func doJSON(ctx context.Context, client *http.Client, newReq func() (*http.Request, error)) ([]byte, error) {
	operation := func() ([]byte, error) {
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err // network errors: retried by default
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode/100 != 2 {
			apiErr := &apiError{status: resp.StatusCode, body: string(body)}
			if retryableStatus(resp.StatusCode) {
				return nil, apiErr
			}
			return nil, backoff.Permanent(apiErr)
		}
		return body, nil
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(5),
	)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && !retryableStatus(apiErr.status) {
			return nil, domain.Fatal(err)
		}
		return nil, domain.Retryable(err)
	}
	return body, nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}
