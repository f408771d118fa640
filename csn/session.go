package csn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/csndl/config"
	"github.com/xeptore/csndl/errutil"
	"github.com/xeptore/csndl/httputil"
	"github.com/xeptore/csndl/must"
)

var (
	ErrLoginFailed        = errors.New("login failed")
	ErrUnsupportedQuality = errors.New("unsupported quality")
)

type Credentials struct {
	Username string
	Password string
}

// IsSet reports whether both username and password were given.
func (c Credentials) IsSet() bool {
	return c.Username != "" && c.Password != ""
}

// Session is the logged in, or anonymous, browsing state shared by every
// request of a run. Its client holds the cookies set by the site.
type Session struct {
	baseURL   *url.URL
	client    *http.Client
	parser    PageParser
	logger    zerolog.Logger
	csrfToken string
}

func NewSession(baseURL *url.URL, client *http.Client, logger zerolog.Logger) *Session {
	return &Session{
		baseURL: baseURL,
		client:  client,
		parser:  NewHTMLParser(),
		logger:  logger.With().Str("module", "session").Logger(),
	}
}

func (s *Session) Client() *http.Client {
	return s.client
}

func (s *Session) CSRFToken() string {
	return s.csrfToken
}

func (s *Session) landingURL() string {
	return s.baseURL.JoinPath("/").String()
}

func (s *Session) origin() string {
	return s.baseURL.Scheme + "://" + s.baseURL.Host
}

// Init opens the session by visiting the landing page and keeps the CSRF
// token found there.
func (s *Session) Init(ctx context.Context) error {
	header := http.Header{"User-Agent": {httputil.DefaultUserAgent}}
	page, err := getPage(ctx, s.client, s.landingURL(), config.LandingPageRequestTimeout, header)
	if nil != err {
		return err
	}

	token, err := s.parser.CSRFToken(bytes.NewReader(page))
	if nil != err {
		return err
	}
	s.csrfToken = token
	s.logger.Debug().Msg("Session initialized")
	return nil
}

// Authorize makes the session able to download quality. With credentials it
// logs in; without, only the free tiers are allowed.
func (s *Session) Authorize(ctx context.Context, creds Credentials, quality Quality) error {
	switch {
	case creds.IsSet() && quality.IsKnown():
		return s.Login(ctx, creds)
	case quality.IsFree():
		s.logger.Info().Str("quality", quality.String()).Msg("Continuing without login")
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedQuality, quality)
	}
}

func (s *Session) Login(ctx context.Context, creds Credentials) (err error) {
	ctx, cancel := context.WithTimeout(ctx, config.LoginRequestTimeout)
	defer cancel()

	loginURL := s.baseURL.JoinPath("login").String()
	flawP := flaw.P{"url": loginURL, "username": creds.Username}

	form := url.Values{
		"email":    {creds.Username},
		"password": {creds.Password},
		"remember": {"true"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if nil != err {
		if errutil.IsContext(ctx) {
			return ctx.Err()
		}
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return flaw.From(fmt.Errorf("failed to create login request: %v", err)).Append(flawP)
	}
	req.Header.Set("User-Agent", httputil.DefaultUserAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", s.landingURL())
	req.Header.Set("Origin", s.origin())
	req.Header.Set("DNT", "1")
	req.Header.Set("X-CSRF-TOKEN", s.csrfToken)

	resp, err := s.client.Do(req)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded), errutil.IsTimeout(err):
			return context.DeadlineExceeded
		default:
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return flaw.From(fmt.Errorf("failed to send login request: %v", err)).Append(flawP)
		}
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			closeErr = flaw.From(fmt.Errorf("failed to close login response body: %v", closeErr)).Append(flawP)
			switch {
			case nil == err:
				err = closeErr
			case errutil.IsContext(ctx):
				err = flaw.From(errors.New("context has ended")).Join(closeErr)
			case errors.Is(err, context.DeadlineExceeded):
				err = flaw.From(errors.New("timeout has reached")).Join(closeErr)
			case errors.Is(err, ErrLoginFailed):
				err = flaw.From(errors.New("login failed")).Join(closeErr)
			case errutil.IsFlaw(err):
				err = must.BeFlaw(err).Join(closeErr)
			default:
				panic(errutil.UnknownError(err))
			}
		}
	}()
	flawP["response"] = errutil.HTTPResponseFlawPayload(resp)

	respBytes, err := httputil.ReadOptionalResponseBody(ctx, resp)
	if nil != err {
		return err
	}

	if resp.StatusCode != http.StatusOK || !gjson.ValidBytes(respBytes) || !gjson.GetBytes(respBytes, "success").Bool() {
		s.logger.Error().Int("status_code", resp.StatusCode).Str("response_body", string(respBytes)).Msg("Login not ok")
		return ErrLoginFailed
	}

	s.logger.Info().Str("username", creds.Username).Msg("Login ok")
	return nil
}

// Album fetches and parses an album page.
func (s *Session) Album(ctx context.Context, albumURL string) (*AlbumPage, error) {
	pageURL, err := s.baseURL.Parse(albumURL)
	if nil != err {
		flawP := flaw.P{"album_url": albumURL, "err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("invalid album URL: %v", err)).Append(flawP)
	}

	page, err := getPage(ctx, s.client, pageURL.String(), config.AlbumPageRequestTimeout, nil)
	if nil != err {
		return nil, err
	}

	album, err := s.parser.Album(bytes.NewReader(page), pageURL)
	if nil != err {
		return nil, err
	}
	return album, nil
}
