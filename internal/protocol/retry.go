package protocol

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"askbridge/internal/metrics"
)

const (
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 8 * time.Second
)

// doWithRetry issues the request with exponential backoff for transient
// transport failures. Retries are sequential and the delay never decreases:
// the base doubles per attempt (capped) and jitter stays under half the base.
// Every attempt runs under its own wall-clock ceiling; an expired ceiling is
// a TimeoutError and is never retried. On success the attempt's context and
// cancel func are returned so the caller can stream the body under the same
// ceiling; cancel must be called once the body is consumed.
func (c *Client) doWithRetry(ctx context.Context, buildReq func(ctx context.Context) (*http.Request, error)) (*http.Response, context.Context, context.CancelFunc, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			base := c.retryBase << (attempt - 1)
			if base > c.retryCap {
				base = c.retryCap
			}
			backoff := base + time.Duration(rand.Int63n(int64(base/2+1)))
			metrics.AskRetriesTotal.Inc()
			c.logger.Warn("retrying request", "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, nil, nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)

		req, err := buildReq(attemptCtx)
		if err != nil {
			cancel()
			return nil, nil, nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			cancel()
			if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				return nil, nil, nil, &TimeoutError{Ceiling: c.timeout}
			}
			if ctx.Err() != nil {
				return nil, nil, nil, ctx.Err()
			}
			lastErr = &TransportError{Err: err}
			if attempt < c.maxRetries {
				continue
			}
			return nil, nil, nil, fmt.Errorf("request failed after %d retries: %w", c.maxRetries, lastErr)
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			cancel()
			statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
			switch ClassifyStatus(resp.StatusCode) {
			case ActionRetryTransient:
				lastErr = statusErr
				if attempt < c.maxRetries {
					continue
				}
				return nil, nil, nil, fmt.Errorf("server error after %d retries: %w", c.maxRetries, lastErr)
			case ActionInformational:
				c.logger.Info("request already processed by backend", "status", resp.StatusCode)
				return nil, nil, nil, statusErr
			default:
				return nil, nil, nil, statusErr
			}
		}

		return resp, attemptCtx, cancel, nil
	}

	return nil, nil, nil, lastErr
}
