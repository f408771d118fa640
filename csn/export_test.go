package csn

import (
	"time"

	"github.com/xeptore/csndl/httputil"
)

func (d *Downloader) SetStreamRetryDelay(f func() time.Duration) {
	d.retryDelay = f
}

func (d *Downloader) SetHeaderTimeout(timeout time.Duration) {
	d.headerTimeout = timeout
}

func (d *Downloader) SetRequestRetryDelay(f func(attempt int) time.Duration) {
	if rt, ok := d.client.Transport.(*httputil.RetryTransport); ok {
		rt.Delay = f
	}
}

var FallbackFileName = fallbackFileName
