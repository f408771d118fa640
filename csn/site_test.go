package csn_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const testCSRFToken = "tok-123"

type fakeTrack struct {
	title string
	hrefs []string
}

// fakeSite impersonates the parts of the site the downloader talks to.
type fakeSite struct {
	t      *testing.T
	srv    *httptest.Server
	mu     sync.Mutex
	hits   map[string]int
	tracks map[string]fakeTrack
	files  map[string]string

	loginBody  string
	albumLinks []string
	landing    string
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()

	s := &fakeSite{
		t:         t,
		hits:      make(map[string]int),
		tracks:    make(map[string]fakeTrack),
		files:     make(map[string]string),
		loginBody: `{"success":true}`,
		landing:   fmt.Sprintf(`<html><head><meta name="csrf-token" content="%s"></head><body></body></html>`, testCSRFToken),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *fakeSite) URL(p string) string {
	return s.srv.URL + p
}

func (s *fakeSite) Hits(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[p]
}

func (s *fakeSite) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

func (s *fakeSite) AddTrack(p, title string, hrefs ...string) {
	s.tracks[p] = fakeTrack{title: title, hrefs: hrefs}
}

func (s *fakeSite) AddFile(p, content string) {
	s.files[p] = content
}

func (s *fakeSite) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.mu.Unlock()

	switch {
	case r.URL.Path == "/":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, s.landing)
	case r.URL.Path == "/login":
		s.serveLogin(w, r)
	case r.URL.Path == "/album":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, albumHTML("Artist One", "Album One", s.albumLinks))
	case strings.HasPrefix(r.URL.Path, "/track/"):
		track, ok := s.tracks[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, detailHTML(track.title, track.hrefs))
	default:
		content, ok := s.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, content)
	}
}

func (s *fakeSite) serveLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost ||
		r.Header.Get("X-CSRF-TOKEN") != testCSRFToken ||
		r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); nil != err {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("email") == "" || r.PostForm.Get("password") == "" || r.PostForm.Get("remember") != "true" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "csn_session", Value: "logged-in", Path: "/"}) //nolint:exhaustruct
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, s.loginBody)
}

func albumHTML(artist, album string, links []string) string {
	var cells strings.Builder
	for _, l := range links {
		fmt.Fprintf(&cells, `<div class="d-table-row"><div class="name d-table-cell"><a href="%s">song</a></div><div class="d-table-cell">3:00</div></div>`, l)
	}
	return fmt.Sprintf(`<html><head><title>%[2]s</title></head><body>
<ul class="list-unstyled">
<li><span>Ca sĩ: </span><a href="/artist">%[1]s</a></li>
<li><span>Album: </span><a href="/album">%[2]s</a></li>
</ul>
<div class="d-table">%[3]s</div>
<div class="d-table"><div class="name d-table-cell"><a href="/track/other.html">other</a></div></div>
</body></html>`, artist, album, cells.String())
}

func detailHTML(title string, hrefs []string) string {
	var items strings.Builder
	for _, h := range hrefs {
		fmt.Fprintf(&items, `<li><a class="download_item" href="%s">file</a></li>`, h)
	}
	return fmt.Sprintf(`<html><head><title>%s</title></head><body><ul>%s</ul></body></html>`, title, items.String())
}
