package csn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"
	"gopkg.in/matryer/try.v1"

	"github.com/xeptore/csndl/config"
	"github.com/xeptore/csndl/errutil"
	"github.com/xeptore/csndl/httputil"
	"github.com/xeptore/csndl/must"
	"github.com/xeptore/csndl/ratelimit"
)

// ErrDownloadLinkNotFound is returned for a detail page that offers no file of
// the requested quality. Nothing is written in that case.
var ErrDownloadLinkNotFound = errors.New("download link not found")

// errStreamInterrupted marks a body read failure that is worth re-streaming.
var errStreamInterrupted = errors.New("file stream interrupted")

type Downloader struct {
	client        *http.Client
	parser        PageParser
	logger        zerolog.Logger
	headerTimeout time.Duration
	retryDelay    func() time.Duration
}

// NewDownloader returns a Downloader sending its requests through client,
// which is expected to retry transient failures through an
// httputil.RetryTransport. A nil client is replaced by a stateless one that does.
func NewDownloader(client *http.Client, parser PageParser, logger zerolog.Logger) *Downloader {
	if nil == client {
		client = &http.Client{Transport: httputil.NewRetryTransport(http.DefaultTransport, logger)} //nolint:exhaustruct
	}
	if nil == parser {
		parser = NewHTMLParser()
	}
	return &Downloader{
		client:        client,
		parser:        parser,
		logger:        logger.With().Str("module", "downloader").Logger(),
		headerTimeout: config.FileResponseHeaderTimeout,
		retryDelay:    ratelimit.StreamRetryDelay,
	}
}

// TrackResult describes a stored track file.
type TrackResult struct {
	FilePath string
	Href     string
	Bytes    int64
	Took     time.Duration
}

// Track downloads the file of quality linked from the detail page at trackURL
// into dir.
func (d *Downloader) Track(ctx context.Context, trackURL string, dir AlbumDir, quality Quality) (*TrackResult, error) {
	page, err := getPage(ctx, d.client, trackURL, config.DetailPageRequestTimeout, nil)
	if nil != err {
		return nil, err
	}

	detail, err := d.parser.Detail(bytes.NewReader(page))
	if nil != err {
		return nil, err
	}

	fileName := TrackFileName(detail.Title)
	if fileName == "_" {
		fileName = fallbackFileName(trackURL)
	}
	logger := d.logger.With().Str("track_url", trackURL).Str("file_name", fileName).Logger()

	start := time.Now()
	logger.Info().Msg("Start")

	href, ok := MatchDownloadHref(detail.Hrefs, quality)
	if !ok {
		logger.Error().Str("quality", quality.String()).Msg("Cannot get href")
		return nil, ErrDownloadLinkNotFound
	}
	href = resolveHref(parseURLOrNil(trackURL), href)

	qualityDir := dir.Quality(quality)
	if err := qualityDir.Create(); nil != err {
		return nil, err
	}
	filePath := qualityDir.File(fileName, FileExt(href))

	if exists, err := fileExists(filePath); nil != err {
		return nil, err
	} else if exists {
		logger.Warn().Str("file_path", filePath).Msg("File exists. Overwriting")
	}

	var size int64
	err = try.Do(func(attempt int) (retry bool, err error) {
		attemptRemained := attempt < ratelimit.MaxStreamAttempts
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(d.retryDelay()):
			}
		}
		n, err := d.stream(ctx, href, filePath)
		if nil != err {
			if errors.Is(err, errStreamInterrupted) && attemptRemained {
				logger.Warn().Err(err).Int("attempt", attempt).Msg("File stream interrupted. Retrying")
				return true, err
			}
			return false, err
		}
		size = n
		return false, nil
	})
	if nil != err {
		if errors.Is(err, errStreamInterrupted) {
			return nil, flaw.From(fmt.Errorf("failed to stream track file: %v", err)).Append(flaw.P{"href": href, "file_path": filePath})
		}
		return nil, err
	}

	result := TrackResult{
		FilePath: filePath,
		Href:     href,
		Bytes:    size,
		Took:     time.Since(start),
	}
	logger.
		Info().
		Dur("took", result.Took).
		Str("href", href).
		Int64("bytes", size).
		Str("size", humanize.Bytes(uint64(max(size, 0)))).
		Msg("Done")
	return &result, nil
}

func (d *Downloader) stream(ctx context.Context, href, filePath string) (n int64, err error) {
	flawP := flaw.P{"href": href, "file_path": filePath}

	req, err := http.NewRequestWithContext(httputil.WithHeaderTimeout(ctx, d.headerTimeout), http.MethodGet, href, nil)
	if nil != err {
		if errutil.IsContext(ctx) {
			return 0, ctx.Err()
		}
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return 0, flaw.From(fmt.Errorf("failed to create get track file request: %v", err)).Append(flawP)
	}

	resp, err := d.client.Do(req)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return 0, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded), errutil.IsTimeout(err):
			return 0, context.DeadlineExceeded
		default:
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return 0, flaw.From(fmt.Errorf("failed to send get track file request: %v", err)).Append(flawP)
		}
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			closeErr = flaw.From(fmt.Errorf("failed to close get track file response body: %v", closeErr)).Append(flawP)
			switch {
			case nil == err:
				err = closeErr
			case errutil.IsContext(ctx):
				err = flaw.From(errors.New("context has ended")).Join(closeErr)
			case errors.Is(err, context.DeadlineExceeded):
				err = flaw.From(errors.New("timeout has reached")).Join(closeErr)
			case errors.Is(err, errStreamInterrupted):
				err = flaw.From(errors.New("file stream interrupted")).Join(closeErr)
			case errutil.IsFlaw(err):
				err = must.BeFlaw(err).Join(closeErr)
			default:
				panic(errutil.UnknownError(err))
			}
		}
	}()
	flawP["response"] = errutil.HTTPResponseFlawPayload(resp)

	if code := resp.StatusCode; code != http.StatusOK {
		respBytes, err := httputil.ReadOptionalResponseBody(ctx, resp)
		if nil != err {
			return 0, err
		}
		flawP["response_body"] = string(respBytes)
		return 0, flaw.From(fmt.Errorf("unexpected status code received from get track file: %d", code)).Append(flawP)
	}

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o0644)
	if nil != err {
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return 0, flaw.From(fmt.Errorf("failed to create track file: %v", err)).Append(flawP)
	}
	defer func() {
		if closeErr := f.Close(); nil != closeErr {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			closeErr = flaw.From(fmt.Errorf("failed to close track file: %v", closeErr)).Append(flawP)
			switch {
			case nil == err:
				err = closeErr
			case errutil.IsFlaw(err):
				err = must.BeFlaw(err).Join(closeErr)
			default:
				err = flaw.From(err).Join(closeErr)
			}
		}
	}()

	n, err = io.Copy(f, resp.Body)
	if nil != err {
		var pathErr *fs.PathError
		switch {
		case errutil.IsContext(ctx):
			return n, ctx.Err()
		case errors.As(err, &pathErr):
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return n, flaw.From(fmt.Errorf("failed to write track file: %v", err)).Append(flawP)
		default:
			return n, fmt.Errorf("%w after %d bytes: %v", errStreamInterrupted, n, err)
		}
	}
	return n, nil
}

func fallbackFileName(trackURL string) string {
	p := trackURL
	if u, err := url.Parse(trackURL); nil == err {
		p = u.Path
	}
	base := path.Base(p)
	return SanitizeFileName(strings.TrimSuffix(base, path.Ext(base)))
}

func parseURLOrNil(s string) *url.URL {
	u, err := url.Parse(s)
	if nil != err {
		return nil
	}
	return u
}
