package csn

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/xeptore/csndl/errutil"
	"github.com/xeptore/csndl/log"
)

// Report counts the outcome of every track of an album run.
type Report struct {
	Total      int `json:"total"`
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Complete reports whether every track was downloaded.
func (r Report) Complete() bool {
	return r.Downloaded == r.Total
}

func (r Report) MarshalZerologObject(e *zerolog.Event) {
	e.Int("total", r.Total).Int("downloaded", r.Downloaded).Int("skipped", r.Skipped).Int("failed", r.Failed)
}

// Album downloads every track of page into dir using at most threads
// concurrent workers. A failing track never stops the others.
func (d *Downloader) Album(ctx context.Context, page *AlbumPage, dir AlbumDir, quality Quality, threads int) Report {
	var (
		downloaded atomic.Int64
		skipped    atomic.Int64
		failed     atomic.Int64
	)

	var wg errgroup.Group
	wg.SetLimit(max(threads, 1))

	for _, trackURL := range page.TrackURLs {
		wg.Go(func() error {
			defer func() {
				if r := recover(); nil != r {
					failed.Add(1)
					d.logger.Error().Func(log.Panic(r)).Str("track_url", trackURL).Msg("Track download panicked")
				}
			}()

			_, err := d.Track(ctx, trackURL, dir, quality)
			switch {
			case nil == err:
				downloaded.Add(1)
			case errors.Is(err, ErrDownloadLinkNotFound):
				skipped.Add(1)
			case errutil.IsContext(ctx):
				failed.Add(1)
				d.logger.Warn().Str("track_url", trackURL).Msg("Track download canceled")
			case errors.Is(err, context.DeadlineExceeded):
				failed.Add(1)
				d.logger.Error().Str("track_url", trackURL).Msg("Track download timed out")
			default:
				failed.Add(1)
				d.logger.Error().Func(log.Flaw(err)).Str("track_url", trackURL).Msg("Failed to download track")
			}
			return nil
		})
	}
	_ = wg.Wait()

	return Report{
		Total:      len(page.TrackURLs),
		Downloaded: int(downloaded.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
}
