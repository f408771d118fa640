package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/csndl/errutil"
)

// ErrEmptyBody is returned by ReadResponseBody when the server sent no bytes.
var ErrEmptyBody = errors.New("unexpected empty response body")

func readResponseBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	respBody, err := io.ReadAll(resp.Body)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, context.DeadlineExceeded
		default:
			flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
			return nil, flaw.From(fmt.Errorf("failed to read response body: %v", err)).Append(flawP)
		}
	}
	return respBody, nil
}

func ReadResponseBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	respBody, err := readResponseBody(ctx, resp)
	if nil != err {
		return nil, err
	}
	if len(respBody) == 0 {
		return nil, ErrEmptyBody
	}
	return respBody, nil
}

// ReadOptionalResponseBody is like ReadResponseBody but accepts an empty body.
// It is used where the body only enriches an error report.
func ReadOptionalResponseBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	return readResponseBody(ctx, resp)
}
