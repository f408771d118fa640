package errutil

import (
	"errors"
	"net/http"

	"github.com/xeptore/flaw/v8"
)

func HTTPResponseFlawPayload(res *http.Response) flaw.P {
	out := make(flaw.P, 6)
	out["status"] = res.Status
	out["status_code"] = res.StatusCode
	out["content_length"] = res.ContentLength
	out["proto"] = res.Proto
	headers := make(flaw.P, len(res.Header))
	for k, v := range res.Header {
		if k == "Set-Cookie" {
			headers[k] = "<redacted>"
			continue
		}
		headers[k] = v
	}
	out["headers"] = headers
	if nil != res.Request && nil != res.Request.URL {
		out["final_url"] = res.Request.URL.String()
	}
	return out
}

func IsFlaw(err error) bool {
	if flawErr := new(flaw.Flaw); errors.As(err, &flawErr) {
		return true
	}
	return false
}
