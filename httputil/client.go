package httputil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"

	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"
	"golang.org/x/net/publicsuffix"

	"github.com/xeptore/csndl/config"
	"github.com/xeptore/csndl/errutil"
)

const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:82.0) Gecko/20100101 Firefox/82.0"

// NewClient builds the client shared by every request of a run. It owns the
// cookie jar that carries the login session, and applies opts to every
// request it sends.
func NewClient(opts config.RequestOptions) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to create cookie jar: %v", err)).Append(flawP)
	}

	tlsConfig, err := newTLSConfig(opts)
	if nil != err {
		return nil, err
	}

	transport := &http.Transport{ //nolint:exhaustruct
		Proxy: proxyFunc(opts.Proxies),
		DialContext: (&net.Dialer{ //nolint:exhaustruct
			Timeout:   config.DialTimeout,
			KeepAlive: config.DialKeepAlive,
		}).DialContext,
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		IdleConnTimeout:       config.IdleConnTimeout,
		ResponseHeaderTimeout: opts.Timeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		ForceAttemptHTTP2:     true,
	}

	client := &http.Client{ //nolint:exhaustruct
		Jar: jar,
		Transport: &headerTransport{
			base:    transport,
			headers: opts.Headers,
			cookies: opts.Cookies,
		},
	}
	if nil != opts.AllowRedirects && !*opts.AllowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	}
	return client, nil
}

// WithRetry returns a copy of c whose requests go through a RetryTransport.
// The copy shares c's cookie jar and connection pool.
func WithRetry(c *http.Client, logger zerolog.Logger) *http.Client {
	out := *c
	out.Transport = NewRetryTransport(c.Transport, logger)
	return &out
}

func newTLSConfig(opts config.RequestOptions) (*tls.Config, error) {
	conf := &tls.Config{MinVersion: tls.VersionTLS12} //nolint:exhaustruct
	if nil != opts.Verify && !*opts.Verify {
		conf.InsecureSkipVerify = true //nolint:gosec
	}
	if opts.CABundle != "" {
		flawP := flaw.P{"ca_bundle": opts.CABundle}
		pem, err := os.ReadFile(opts.CABundle)
		if nil != err {
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return nil, flaw.From(fmt.Errorf("failed to read CA bundle: %v", err)).Append(flawP)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, flaw.From(fmt.Errorf("no certificate found in CA bundle %q", opts.CABundle)).Append(flawP)
		}
		conf.RootCAs = pool
	}
	return conf, nil
}

func proxyFunc(proxies map[string]*url.URL) func(*http.Request) (*url.URL, error) {
	if len(proxies) == 0 {
		return http.ProxyFromEnvironment
	}
	return func(req *http.Request) (*url.URL, error) {
		return proxies[req.URL.Scheme], nil
	}
}

// headerTransport adds the configured headers and cookies to requests that do
// not already carry them, and a browser User-Agent when none is set.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
	cookies map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", DefaultUserAgent)
	}
	for name, value := range t.cookies {
		if _, err := req.Cookie(name); nil != err {
			req.AddCookie(&http.Cookie{Name: name, Value: value}) //nolint:exhaustruct
		}
	}
	return t.base.RoundTrip(req)
}
