package csn

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/csndl/config"
	"github.com/xeptore/csndl/errutil"
	"github.com/xeptore/csndl/httputil"
)

type Options struct {
	AlbumURL    string
	BaseURL     string
	Credentials Credentials
	Quality     Quality
	Threads     int
	OutputDir   string
	// Client is shared by every request of the run. A fresh client without
	// extra request options is created when nil.
	Client *http.Client
	// Parser defaults to NewHTMLParser.
	Parser PageParser
	Logger zerolog.Logger
}

// Run downloads an album: it opens a session, authorizes it for the requested
// quality, scrapes the album page and downloads its tracks. The returned error
// is only non-nil for failures that stop the whole run; per track outcomes are
// in the Report.
func Run(ctx context.Context, opts Options) (*Report, error) {
	logger := opts.Logger

	baseURL, err := url.Parse(opts.BaseURL)
	if nil != err {
		flawP := flaw.P{"base_url": opts.BaseURL, "err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("invalid base URL: %v", err)).Append(flawP)
	}

	client := opts.Client
	if nil == client {
		client, err = httputil.NewClient(config.RequestOptions{}) //nolint:exhaustruct
		if nil != err {
			return nil, err
		}
	}

	parser := opts.Parser
	if nil == parser {
		parser = NewHTMLParser()
	}

	session := NewSession(baseURL, client, logger)
	session.parser = parser

	if err := session.Init(ctx); nil != err {
		return nil, err
	}

	if err := session.Authorize(ctx, opts.Credentials, opts.Quality); nil != err {
		return nil, err
	}

	album, err := session.Album(ctx, opts.AlbumURL)
	if nil != err {
		return nil, err
	}
	logger.Info().Int("songs", len(album.TrackURLs)).Str("artist", album.Artist).Str("album", album.Title).Msg("Album scraped")

	if len(album.TrackURLs) == 0 {
		logger.Warn().Str("album_url", opts.AlbumURL).Msg("Album has no tracks")
		return &Report{}, nil //nolint:exhaustruct
	}

	dir := OutputDir(opts.OutputDir).Album(album.Artist, album.Title)
	if err := dir.Create(); nil != err {
		return nil, err
	}

	downloader := NewDownloader(httputil.WithRetry(client, logger), parser, logger)
	report := downloader.Album(ctx, album, dir, opts.Quality, opts.Threads)
	logger.Info().Object("report", report).Str("album_dir", dir.Path()).Msg("Album download finished")
	return &report, nil
}
