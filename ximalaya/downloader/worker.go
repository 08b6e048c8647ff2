package downloader

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/xeptore/xmlydl/config"
	"github.com/xeptore/xmlydl/ratelimit"
	"github.com/xeptore/xmlydl/ximalaya/fs"
	"github.com/xeptore/xmlydl/ximalaya/session"
	"github.com/xeptore/xmlydl/ximalaya/types"
)

// Download saves the media of job into its album directory. A track file
// that already exists is skipped without touching the network. Otherwise the
// download is tried up to the configured number of attempts.
func (d *Downloader) Download(
	ctx context.Context,
	logger zerolog.Logger,
	sess *session.Session,
	job types.DownloadJob,
) types.DownloadOutcome {
	logger = logger.With().Dict("job", job.ToDict()).Logger()

	album := fs.DownloadDirFrom(job.TargetDir).Album(job.AlbumName)
	if err := album.Ensure(); nil != err {
		logger.Error().Err(err).Msg("Failed to create album directory")
		return types.DownloadOutcome{Kind: types.OutcomeFailed, Job: job, Path: "", Bytes: 0, Err: err}
	}

	track := album.Track(job.DisplayName, TrackExt(job.SourceURL))
	if exists, err := track.Exists(); nil != err {
		logger.Error().Err(err).Msg("Failed to check track file existence")
		return types.DownloadOutcome{Kind: types.OutcomeFailed, Job: job, Path: track.Path, Bytes: 0, Err: err}
	} else if exists {
		return types.DownloadOutcome{Kind: types.OutcomeSkipped, Job: job, Path: track.Path, Bytes: 0, Err: nil}
	}

	var (
		attempt int
		written int64
	)
	err := retry.Do(ctx, d.attemptBackoff(), func(ctx context.Context) error {
		attempt++
		n, err := saveTrack(ctx, sess, job.SourceURL, track, config.Seconds(d.conf.Timeouts.DownloadTrack))
		if nil != err {
			if removeErr := track.RemovePartial(); nil != removeErr {
				logger.Error().Err(removeErr).Msg("Failed to remove track part file")
				err = errors.Join(err, removeErr)
			}

			if errors.Is(err, session.ErrSessionClosed) {
				return err
			}

			logger.Debug().Err(err).Int("attempt", attempt).Msg("Track download attempt failed")

			return retry.RetryableError(err)
		}
		written = n

		return nil
	})
	if nil != err {
		return types.DownloadOutcome{Kind: types.OutcomeFailed, Job: job, Path: track.Path, Bytes: 0, Err: err}
	}

	return types.DownloadOutcome{Kind: types.OutcomeSuccess, Job: job, Path: track.Path, Bytes: written, Err: nil}
}

func (d *Downloader) attemptBackoff() retry.Backoff {
	delay := d.conf.RetryDelay.Duration
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		if delay <= 0 {
			return 0, false
		}

		return ratelimit.Jitter(delay), false
	})

	return retry.WithMaxRetries(d.attempts()-1, b)
}
