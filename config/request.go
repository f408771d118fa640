package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/csndl/errutil"
)

// EnvRequestOptions names the environment variable holding a JSON object of
// extra options applied to every outbound request.
const EnvRequestOptions = "REQUESTS_EXTRA_KWARGS"

// RequestOptions are the per-request extras understood by the HTTP client.
// Keys follow the names used by the REQUESTS_EXTRA_KWARGS JSON object.
type RequestOptions struct {
	Headers        map[string]string
	Cookies        map[string]string
	Proxies        map[string]*url.URL
	Verify         *bool
	CABundle       string
	Timeout        time.Duration
	AllowRedirects *bool
}

func (o RequestOptions) IsZero() bool {
	return len(o.Headers) == 0 &&
		len(o.Cookies) == 0 &&
		len(o.Proxies) == 0 &&
		o.Verify == nil &&
		o.CABundle == "" &&
		o.Timeout == 0 &&
		o.AllowRedirects == nil
}

func (o RequestOptions) FlawP() flaw.P {
	return flaw.P{
		"header_names":    lo.Keys(o.Headers),
		"cookie_names":    lo.Keys(o.Cookies),
		"proxy_schemes":   lo.Keys(o.Proxies),
		"verify":          o.Verify,
		"ca_bundle":       o.CABundle,
		"timeout":         o.Timeout.String(),
		"allow_redirects": o.AllowRedirects,
	}
}

// ParseRequestOptions decodes raw, which must be empty or a JSON object. Keys
// that are not understood are returned sorted in unknown so the caller can
// report them; they do not make parsing fail.
func ParseRequestOptions(raw string) (opts RequestOptions, unknown []string, err error) {
	if raw = strings.TrimSpace(raw); raw == "" {
		return RequestOptions{}, nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		return RequestOptions{}, nil, flaw.From(fmt.Errorf("%s must be a JSON object: %v", EnvRequestOptions, err)).Append(flawP)
	}

	for key, value := range fields {
		flawP := flaw.P{"key": key, "value": string(value)}
		switch key {
		case "headers":
			if err := json.Unmarshal(value, &opts.Headers); nil != err {
				return RequestOptions{}, nil, flaw.From(fmt.Errorf("headers must be an object of strings: %v", err)).Append(flawP)
			}
		case "cookies":
			if err := json.Unmarshal(value, &opts.Cookies); nil != err {
				return RequestOptions{}, nil, flaw.From(fmt.Errorf("cookies must be an object of strings: %v", err)).Append(flawP)
			}
		case "proxies":
			proxies, err := parseProxies(value)
			if nil != err {
				return RequestOptions{}, nil, flaw.From(err).Append(flawP)
			}
			opts.Proxies = proxies
		case "verify":
			var verify bool
			if err := json.Unmarshal(value, &verify); nil == err {
				opts.Verify = &verify
				continue
			}
			if err := json.Unmarshal(value, &opts.CABundle); nil != err {
				return RequestOptions{}, nil, flaw.From(fmt.Errorf("verify must be a boolean or a CA bundle path: %v", err)).Append(flawP)
			}
		case "timeout":
			timeout, err := parseTimeout(value)
			if nil != err {
				return RequestOptions{}, nil, flaw.From(err).Append(flawP)
			}
			opts.Timeout = timeout
		case "allow_redirects":
			var allow bool
			if err := json.Unmarshal(value, &allow); nil != err {
				return RequestOptions{}, nil, flaw.From(fmt.Errorf("allow_redirects must be a boolean: %v", err)).Append(flawP)
			}
			opts.AllowRedirects = &allow
		default:
			unknown = append(unknown, key)
		}
	}

	slices.Sort(unknown)
	return opts, unknown, nil
}

func parseProxies(value json.RawMessage) (map[string]*url.URL, error) {
	var raw map[string]string
	if err := json.Unmarshal(value, &raw); nil != err {
		return nil, fmt.Errorf("proxies must be an object of strings: %v", err)
	}

	out := make(map[string]*url.URL, len(raw))
	for scheme, proxy := range raw {
		if scheme != "http" && scheme != "https" {
			return nil, fmt.Errorf("unsupported proxy scheme key %q: expected http or https", scheme)
		}
		u, err := url.Parse(proxy)
		if nil != err {
			return nil, fmt.Errorf("invalid %s proxy URL %q: %v", scheme, proxy, err)
		}
		out[scheme] = u
	}
	return out, nil
}

// parseTimeout accepts a number of seconds, or a [connect, read] pair of which
// the larger value is used.
func parseTimeout(value json.RawMessage) (time.Duration, error) {
	var seconds float64
	if err := json.Unmarshal(value, &seconds); nil == err {
		if seconds <= 0 {
			return 0, fmt.Errorf("timeout must be positive, got %v", seconds)
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}

	var pair []float64
	if err := json.Unmarshal(value, &pair); nil != err || len(pair) != 2 {
		return 0, fmt.Errorf("timeout must be a number or a [connect, read] pair")
	}
	seconds = max(pair[0], pair[1])
	if seconds <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %v", pair)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
