package csn_test

import (
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/csndl/config"
	"github.com/xeptore/csndl/csn"
	"github.com/xeptore/csndl/httputil"
)

func newSession(t *testing.T, site *fakeSite) *csn.Session {
	t.Helper()

	baseURL, err := url.Parse(site.URL("/"))
	require.NoError(t, err)
	client, err := httputil.NewClient(config.RequestOptions{}) //nolint:exhaustruct
	require.NoError(t, err)
	return csn.NewSession(baseURL, client, zerolog.Nop())
}

func TestSessionInit(t *testing.T) {
	t.Parallel()

	t.Run("stores_csrf_token", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(t)
		session := newSession(t, site)
		require.NoError(t, session.Init(t.Context()))
		assert.Equal(t, testCSRFToken, session.CSRFToken())
	})

	t.Run("missing_csrf_token", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(t)
		site.landing = `<html><head></head><body></body></html>`
		session := newSession(t, site)
		require.ErrorIs(t, session.Init(t.Context()), csn.ErrCSRFTokenNotFound)
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(t)
		session := newSession(t, site)
		site.srv.Close()
		require.Error(t, session.Init(t.Context()))
	})
}

func TestSessionAuthorize(t *testing.T) {
	t.Parallel()

	creds := csn.Credentials{Username: "me@example.com", Password: "secret"}

	t.Run("login_ok_keeps_cookie", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(t)
		session := newSession(t, site)
		require.NoError(t, session.Init(t.Context()))
		require.NoError(t, session.Authorize(t.Context(), creds, csn.QualityFLAC))
		assert.Equal(t, 1, site.Hits("/login"))

		u, err := url.Parse(site.URL("/"))
		require.NoError(t, err)
		cookies := session.Client().Jar.Cookies(u)
		require.Len(t, cookies, 1)
		assert.Equal(t, "logged-in", cookies[0].Value)
	})

	t.Run("login_without_success", func(t *testing.T) {
		t.Parallel()

		for name, body := range map[string]string{
			"false":        `{"success":false,"message":"wrong password"}`,
			"missing":      `{"message":"ok?"}`,
			"not_json":     `<html>error</html>`,
			"empty_object": `{}`,
		} {
			site := newFakeSite(t)
			site.loginBody = body
			session := newSession(t, site)
			require.NoError(t, session.Init(t.Context()))
			require.ErrorIs(t, session.Authorize(t.Context(), creds, csn.Quality320), csn.ErrLoginFailed, name)
		}
	})

	t.Run("login_rejected_status", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(t)
		session := newSession(t, site)
		// Skipping Init leaves the CSRF token empty, which the site rejects with 403.
		require.ErrorIs(t, session.Authorize(t.Context(), creds, csn.Quality320), csn.ErrLoginFailed)
	})

	t.Run("anonymous_free_quality", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(t)
		session := newSession(t, site)
		require.NoError(t, session.Authorize(t.Context(), csn.Credentials{}, csn.Quality128)) //nolint:exhaustruct
		assert.Zero(t, site.TotalHits())
	})

	t.Run("anonymous_paid_quality", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(t)
		session := newSession(t, site)
		err := session.Authorize(t.Context(), csn.Credentials{Username: "only-user"}, csn.Quality320) //nolint:exhaustruct
		require.ErrorIs(t, err, csn.ErrUnsupportedQuality)
		assert.Zero(t, site.TotalHits())
	})

	t.Run("unknown_quality", func(t *testing.T) {
		t.Parallel()

		site := newFakeSite(t)
		session := newSession(t, site)
		require.ErrorIs(t, session.Authorize(t.Context(), creds, csn.Quality("64")), csn.ErrUnsupportedQuality)
		assert.Zero(t, site.Hits("/login"))
	})
}

func TestSessionAlbum(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	site.albumLinks = []string{"/track/a.html", site.URL("/track/a.html"), "/track/b.html"}
	session := newSession(t, site)

	page, err := session.Album(t.Context(), site.URL("/album"))
	require.NoError(t, err)
	assert.Equal(t, "Artist One", page.Artist)
	assert.Equal(t, "Album One", page.Title)
	assert.Equal(t, []string{site.URL("/track/a.html"), site.URL("/track/b.html")}, page.TrackURLs)
}
