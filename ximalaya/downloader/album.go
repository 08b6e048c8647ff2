package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/xeptore/xmlydl/cache"
	"github.com/xeptore/xmlydl/config"
	"github.com/xeptore/xmlydl/httputil"
	"github.com/xeptore/xmlydl/iterutil"
	"github.com/xeptore/xmlydl/mathutil"
	"github.com/xeptore/xmlydl/ximalaya/session"
	"github.com/xeptore/xmlydl/ximalaya/types"
)

type albumTrack struct {
	Index      int    `json:"index"`
	TrackID    int64  `json:"trackId"`
	Title      string `json:"title"`
	AlbumTitle string `json:"albumTitle"`
}

type albumTracksPage struct {
	Total  int
	Tracks []types.TrackDescriptor
}

// GetAlbum lists every track of an album, paginating until the reported
// total is covered.
func (d *Downloader) GetAlbum(
	ctx context.Context,
	logger zerolog.Logger,
	sess *session.Session,
	id string,
) (*types.Album, error) {
	item, err := d.cache.Albums.Fetch(
		id,
		cache.DefaultAlbumTTL,
		func() (*types.Album, error) { return d.fetchAlbum(ctx, logger, sess, id) },
	)
	if nil != err {
		return nil, fmt.Errorf("failed to get album: %w", err)
	}

	return item.Value(), nil
}

func (d *Downloader) fetchAlbum(
	ctx context.Context,
	logger zerolog.Logger,
	sess *session.Session,
	id string,
) (*types.Album, error) {
	logger = logger.With().Str("album_id", id).Logger()

	first, err := d.albumTracksPageWithRetry(ctx, logger, sess, id, 1)
	if nil != err {
		return nil, err
	}

	if first.Total == 0 || len(first.Tracks) == 0 {
		return nil, ErrEmptyAlbum
	}

	tracks := make([]types.TrackDescriptor, 0, first.Total)
	tracks = append(tracks, first.Tracks...)

	pages := mathutil.DivCeil(first.Total, pageSize)
	for page := 2; page <= pages; page++ {
		p, err := d.albumTracksPageWithRetry(ctx, logger, sess, id, page)
		if nil != err {
			return nil, err
		}
		tracks = append(tracks, p.Tracks...)
	}

	logger.Debug().Int("total", first.Total).Int("listed", len(tracks)).Int("pages", pages).Msg("Album listed")

	return &types.Album{
		ID:     id,
		Title:  tracks[0].AlbumTitle,
		Tracks: tracks,
	}, nil
}

func (d *Downloader) albumTracksPageWithRetry(
	ctx context.Context,
	logger zerolog.Logger,
	sess *session.Session,
	id string,
	page int,
) (*albumTracksPage, error) {
	var out *albumTracksPage
	err := backoff.RetryNotify(
		func() error {
			p, err := d.albumTracksPage(ctx, logger, sess, id, page)
			if nil != err {
				if errors.Is(err, ErrUnexpectedResponse) || errors.Is(err, session.ErrSessionClosed) {
					return backoff.Permanent(err)
				}

				return err
			}
			out = p

			return nil
		},
		backoff.WithContext(
			backoff.WithMaxRetries(
				backoff.NewExponentialBackOff(
					backoff.WithInitialInterval(500*time.Millisecond),
					backoff.WithMaxInterval(5*time.Second),
				),
				2,
			),
			ctx,
		),
		func(err error, wait time.Duration) {
			logger.Warn().Err(err).Int("page", page).Dur("wait", wait).Msg("Failed to get album tracks page, retrying")
		},
	)
	if nil != err {
		return nil, fmt.Errorf("failed to get album tracks page %d: %w", page, err)
	}

	return out, nil
}

func (d *Downloader) albumTracksPage(
	ctx context.Context,
	logger zerolog.Logger,
	sess *session.Session,
	id string,
	page int,
) (p *albumTracksPage, err error) {
	params := make(url.Values, 3)
	params.Add("albumId", id)
	params.Add("pageNum", strconv.Itoa(page))
	params.Add("pageSize", strconv.Itoa(pageSize))

	resp, err := sess.Get(ctx, d.baseURL+albumTracksPath, params, config.Seconds(d.conf.Timeouts.GetAlbumTracks))
	if nil != err {
		return nil, fmt.Errorf("failed to send get album tracks request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close get album tracks response body")
			err = errors.Join(err, fmt.Errorf("failed to close get album tracks response body: %v", closeErr))
		}
	}()

	if err := httputil.CheckStatus(resp, http.StatusOK); nil != err {
		return nil, err
	}

	respBytes, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return nil, err
	}

	var respBody struct {
		Data *struct {
			TrackTotalCount int          `json:"trackTotalCount"`
			Tracks          []albumTrack `json:"tracks"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		logger.Error().Err(err).Bytes("response_body", respBytes).Msg("Failed to decode album tracks response")
		return nil, fmt.Errorf("%w: failed to decode album tracks response: %v", ErrUnexpectedResponse, err)
	}

	if nil == respBody.Data {
		logger.Error().Bytes("response_body", respBytes).Msg("Album tracks response has no data")
		return nil, fmt.Errorf("%w: album tracks response has no data", ErrUnexpectedResponse)
	}

	tracks := iterutil.Map(respBody.Data.Tracks, func(i int, t albumTrack) types.TrackDescriptor {
		index := t.Index
		if index == 0 {
			index = (page-1)*pageSize + i + 1
		}

		return types.TrackDescriptor{
			ID:         strconv.FormatInt(t.TrackID, 10),
			Title:      t.Title,
			AlbumTitle: t.AlbumTitle,
			Index:      index,
		}
	})

	return &albumTracksPage{Total: respBody.Data.TrackTotalCount, Tracks: tracks}, nil
}

// GetAlbumKind reports whether an album is free, purchased or not purchased
// by the session account.
func (d *Downloader) GetAlbumKind(
	ctx context.Context,
	logger zerolog.Logger,
	sess *session.Session,
	id string,
) (types.AlbumKind, error) {
	item, err := d.cache.AlbumKinds.Fetch(
		id,
		cache.DefaultAlbumKindTTL,
		func() (types.AlbumKind, error) { return d.fetchAlbumKind(ctx, logger, sess, id) },
	)
	if nil != err {
		return 0, fmt.Errorf("failed to get album kind: %w", err)
	}

	return item.Value(), nil
}

func (d *Downloader) fetchAlbumKind(
	ctx context.Context,
	logger zerolog.Logger,
	sess *session.Session,
	id string,
) (k types.AlbumKind, err error) {
	params := make(url.Values, 1)
	params.Add("albumId", id)

	resp, err := sess.Get(ctx, d.baseURL+albumSimplePath, params, config.Seconds(d.conf.Timeouts.GetAlbumInfo))
	if nil != err {
		return 0, fmt.Errorf("failed to send get album info request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close get album info response body")
			err = errors.Join(err, fmt.Errorf("failed to close get album info response body: %v", closeErr))
		}
	}()

	if err := httputil.CheckStatus(resp, http.StatusOK); nil != err {
		return 0, err
	}

	respBytes, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return 0, err
	}

	var respBody struct {
		Data *struct {
			AlbumPageMainInfo *struct {
				IsPaid bool `json:"isPaid"`
				HasBuy bool `json:"hasBuy"`
			} `json:"albumPageMainInfo"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		logger.Error().Err(err).Bytes("response_body", respBytes).Msg("Failed to decode album info response")
		return 0, fmt.Errorf("%w: failed to decode album info response: %v", ErrUnexpectedResponse, err)
	}

	if nil == respBody.Data || nil == respBody.Data.AlbumPageMainInfo {
		logger.Error().Bytes("response_body", respBytes).Msg("Album info response has no main info")
		return 0, fmt.Errorf("%w: album info response has no main info", ErrUnexpectedResponse)
	}

	switch info := respBody.Data.AlbumPageMainInfo; {
	case !info.IsPaid:
		return types.AlbumKindFree, nil
	case info.HasBuy:
		return types.AlbumKindPurchased, nil
	default:
		return types.AlbumKindNotPurchased, nil
	}
}
