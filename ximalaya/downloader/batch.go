package downloader

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/xeptore/xmlydl/iterutil"
	"github.com/xeptore/xmlydl/mathutil"
	"github.com/xeptore/xmlydl/result"
	"github.com/xeptore/xmlydl/ximalaya/fs"
	"github.com/xeptore/xmlydl/ximalaya/session"
	"github.com/xeptore/xmlydl/ximalaya/types"
)

type BatchOptions struct {
	// Start and End are 1-based inclusive positions in the track list.
	Start     int
	End       int
	Quality   types.Quality
	Numbered  bool
	TargetDir string
	// AlbumName defaults to the album title of the first selected track.
	AlbumName string
	// OnJobs is called once with the number of jobs to download.
	OnJobs func(n int)
	// OnOutcome is called concurrently with the outcome of every download.
	OnOutcome func(types.DownloadOutcome)
}

func (o BatchOptions) validate(total int) error {
	if total == 0 {
		return ErrEmptyAlbum
	}

	if o.Start < 1 || o.End < o.Start || o.End > total {
		return fmt.Errorf("%w: [%d, %d] of %d tracks", ErrInvalidRange, o.Start, o.End, total)
	}

	if !o.Quality.Valid() {
		return fmt.Errorf("invalid quality: %d", o.Quality)
	}

	if o.TargetDir == "" {
		return errors.New("target directory must not be empty")
	}

	return nil
}

// RunBatch resolves and downloads tracks[Start-1:End]. Failed downloads are
// resubmitted for up to the configured number of generations. Only invalid
// options and context cancellation fail the batch itself.
func (d *Downloader) RunBatch(
	ctx context.Context,
	logger zerolog.Logger,
	sess *session.Session,
	tracks []types.TrackDescriptor,
	opts BatchOptions,
) (*types.BatchReport, error) {
	if err := opts.validate(len(tracks)); nil != err {
		return nil, err
	}

	selected := tracks[opts.Start-1 : opts.End]
	if opts.AlbumName == "" {
		opts.AlbumName = selected[0].AlbumTitle
	}

	logger = logger.With().Str("album", opts.AlbumName).Int("start", opts.Start).Int("end", opts.End).Logger()

	resolutions := d.resolveAll(ctx, logger, sess, selected)
	if err := ctx.Err(); nil != err {
		return nil, fmt.Errorf("batch canceled while resolving tracks: %w", err)
	}

	jobs := d.buildJobs(logger, selected, resolutions, opts, len(tracks))
	logger.Info().Int("selected", len(selected)).Int("jobs", len(jobs)).Msg("Tracks resolved")
	if nil != opts.OnJobs {
		opts.OnJobs(len(jobs))
	}

	report := &types.BatchReport{
		Succeeded:         0,
		Skipped:           0,
		Bytes:             0,
		PermanentlyFailed: nil,
	}

	pending := jobs
	for generation := 0; ; generation++ {
		pending = lo.Map(pending, func(j types.DownloadJob, _ int) types.DownloadJob { return j.WithGeneration(generation) })

		outcomes := d.downloadAll(ctx, logger, sess, pending, opts.OnOutcome)

		var failed []types.DownloadJob
		for _, o := range outcomes {
			switch o.Kind {
			case types.OutcomeSuccess:
				report.Succeeded++
				report.Bytes += o.Bytes
			case types.OutcomeSkipped:
				report.Skipped++
			case types.OutcomeFailed:
				failed = append(failed, o.Job)
			}
		}
		pending = failed

		if err := ctx.Err(); nil != err {
			report.PermanentlyFailed = pending
			return report, fmt.Errorf("batch canceled while downloading tracks: %w", err)
		}

		if len(pending) == 0 || generation >= d.generations() {
			break
		}

		logger.Warn().Int("generation", generation+1).Int("pending", len(pending)).Msg("Retrying failed downloads")
	}

	report.PermanentlyFailed = pending

	return report, nil
}

func (d *Downloader) resolveAll(
	ctx context.Context,
	logger zerolog.Logger,
	sess *session.Session,
	tracks []types.TrackDescriptor,
) []result.Of[types.ResolvedTrack] {
	results := make([]result.Of[types.ResolvedTrack], len(tracks))

	var wg errgroup.Group
	wg.SetLimit(d.concurrency())
	for i, t := range tracks {
		wg.Go(func() error {
			logger := logger.With().Str("track_id", t.ID).Int("track_index", t.Index).Logger()

			track, err := d.Resolve(ctx, logger, sess, t.ID)
			if nil != err {
				if errors.Is(err, ErrNotEntitled) {
					logger.Info().Msg("Track is not available to current account, skipping")
				} else {
					logger.Error().Err(err).Msg("Failed to resolve track")
				}
				results[i] = result.Err[types.ResolvedTrack](err)

				return nil
			}
			results[i] = result.Ok(track)

			return nil
		})
	}
	_ = wg.Wait()

	return results
}

func (d *Downloader) buildJobs(
	logger zerolog.Logger,
	tracks []types.TrackDescriptor,
	resolutions []result.Of[types.ResolvedTrack],
	opts BatchOptions,
	total int,
) []types.DownloadJob {
	width := mathutil.Digits(total)
	taken := make(map[string]struct{}, len(tracks))

	return iterutil.Compact(resolutions, func(i int, r result.Of[types.ResolvedTrack]) (types.DownloadJob, bool) {
		var job types.DownloadJob
		if !r.IsOk() {
			return job, false
		}

		track := r.Unwrap()
		logger := logger.With().Str("track_id", track.ID).Logger()

		sourceURL, quality := track.SelectURL(opts.Quality)
		if sourceURL == "" {
			logger.Warn().Str("quality", quality.String()).Msg("Track has no URL for requested quality, skipping")
			return job, false
		}

		if quality != opts.Quality {
			logger.Info().
				Str("requested", opts.Quality.String()).
				Str("selected", quality.String()).
				Msg("Requested quality is not available, falling back")
		}

		name := lo.Ternary(track.Title != "", track.Title, tracks[i].Title)

		var ordinal string
		if opts.Numbered {
			ordinal = fmt.Sprintf("%0*d", width, opts.Start+i)
			name = ordinal + "-" + name
		} else {
			name = uniqueName(taken, name)
		}

		return types.DownloadJob{
			DisplayName: name,
			SourceURL:   sourceURL,
			AlbumName:   opts.AlbumName,
			TargetDir:   opts.TargetDir,
			Generation:  0,
			Ordinal:     ordinal,
		}, true
	})
}

// uniqueName suffixes name with " (n)" until its file name form, compared
// case-insensitively, is not taken by an earlier job.
func uniqueName(taken map[string]struct{}, name string) string {
	candidate := name
	for n := 2; ; n++ {
		key := strings.ToLower(fs.SanitizeName(candidate))
		if _, ok := taken[key]; !ok {
			taken[key] = struct{}{}
			return candidate
		}
		candidate = name + " (" + strconv.Itoa(n) + ")"
	}
}

func (d *Downloader) downloadAll(
	ctx context.Context,
	logger zerolog.Logger,
	sess *session.Session,
	jobs []types.DownloadJob,
	onOutcome func(types.DownloadOutcome),
) []types.DownloadOutcome {
	outcomes := make([]types.DownloadOutcome, len(jobs))

	var wg errgroup.Group
	wg.SetLimit(d.concurrency())
	for i, job := range jobs {
		wg.Go(func() error {
			o := d.Download(ctx, logger, sess, job)
			outcomes[i] = o

			switch o.Kind {
			case types.OutcomeSuccess:
				logger.Info().Str("path", o.Path).Int64("bytes", o.Bytes).Msg("Track downloaded")
			case types.OutcomeSkipped:
				logger.Info().Str("path", o.Path).Msg("Track already exists, skipping")
			case types.OutcomeFailed:
				logger.Warn().Err(o.Err).Str("name", job.DisplayName).Int("generation", job.Generation).Msg("Track download failed")
			}

			if nil != onOutcome {
				onOutcome(o)
			}

			return nil
		})
	}
	_ = wg.Wait()

	return outcomes
}
