package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

var errHeaderTimeout = errors.New("response header timeout")

type headerTimeoutError struct{}

func (headerTimeoutError) Error() string   { return "timeout awaiting response headers" }
func (headerTimeoutError) Timeout() bool   { return true }
func (headerTimeoutError) Temporary() bool { return true }

type headerTimeoutKey struct{}

// WithHeaderTimeout bounds the wait for response headers of each attempt
// RetryTransport makes for requests carrying the returned context. Reading the
// body is not bounded.
func WithHeaderTimeout(ctx context.Context, timeout time.Duration) context.Context {
	return context.WithValue(ctx, headerTimeoutKey{}, timeout)
}

func headerTimeout(ctx context.Context) time.Duration {
	d, _ := ctx.Value(headerTimeoutKey{}).(time.Duration)
	return d
}

func roundTripWithHeaderTimeout(rt http.RoundTripper, req *http.Request) (*http.Response, error) {
	timeout := headerTimeout(req.Context())
	if timeout <= 0 {
		return rt.RoundTrip(req)
	}

	ctx, cancel := context.WithCancelCause(req.Context())
	timer := time.AfterFunc(timeout, func() { cancel(errHeaderTimeout) })
	resp, err := rt.RoundTrip(req.WithContext(ctx))
	if !timer.Stop() && errors.Is(context.Cause(ctx), errHeaderTimeout) {
		// The timer won. A response that raced it has a cancelled body.
		if nil == err {
			_ = resp.Body.Close()
		}
		cancel(nil)
		return nil, headerTimeoutError{}
	}
	if nil != err {
		cancel(nil)
		return nil, err
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: func() { cancel(nil) }}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel func()
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
