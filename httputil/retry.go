package httputil

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/xeptore/csndl/ratelimit"
)

// RetryTransport retries idempotent requests that fail with a transport error
// or a 429/5xx status. The wait before retry n is Delay(n). Once retries are
// exhausted the last response, or the last error, is returned as is. A header
// timeout set with WithHeaderTimeout applies to every attempt on its own.
type RetryTransport struct {
	Base       http.RoundTripper
	MaxRetries int
	Delay      func(attempt int) time.Duration
	Logger     zerolog.Logger
}

func NewRetryTransport(base http.RoundTripper, logger zerolog.Logger) *RetryTransport {
	return &RetryTransport{
		Base:       base,
		MaxRetries: ratelimit.MaxRequestRetries,
		Delay:      ratelimit.RetryDelay,
		Logger:     logger,
	}
}

type retryableStatusError struct {
	code int
}

func (e retryableStatusError) Error() string {
	return fmt.Sprintf("retryable status code received: %d", e.code)
}

func (t *RetryTransport) base() http.RoundTripper {
	if nil == t.Base {
		return http.DefaultTransport
	}
	return t.Base
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !isIdempotent(req) {
		return roundTripWithHeaderTimeout(t.base(), req)
	}

	var (
		ctx     = req.Context()
		attempt = 0
		policy  = backoff.WithContext(
			backoff.WithMaxRetries(&linearBackOff{delay: t.Delay}, uint64(max(t.MaxRetries, 0))), //nolint:gosec
			ctx,
		)
	)

	op := func() (*http.Response, error) {
		attempt++
		r := req
		if attempt > 1 && nil != req.GetBody {
			body, err := req.GetBody()
			if nil != err {
				return nil, backoff.Permanent(err)
			}
			r = req.Clone(ctx)
			r.Body = body
		}

		resp, err := roundTripWithHeaderTimeout(t.base(), r)
		if nil != err {
			if nil != ctx.Err() {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		if !isRetryableStatus(resp.StatusCode) || attempt > t.MaxRetries {
			return resp, nil
		}
		drainAndClose(resp.Body)
		return nil, retryableStatusError{code: resp.StatusCode}
	}

	notify := func(err error, wait time.Duration) {
		t.Logger.
			Warn().
			Err(err).
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("Request failed. Retrying")
	}

	resp, err := backoff.RetryNotifyWithData(op, policy, notify)
	if nil != err {
		return nil, err
	}
	return resp, nil
}

func isIdempotent(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, "":
		return nil == req.Body || http.NoBody == req.Body || nil != req.GetBody
	default:
		return false
	}
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

type linearBackOff struct {
	attempt int
	delay   func(attempt int) time.Duration
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	if nil == b.delay {
		return ratelimit.RetryDelay(b.attempt)
	}
	return b.delay(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}
