package ximalaya

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/xeptore/xmlydl/cache"
	"github.com/xeptore/xmlydl/config"
	"github.com/xeptore/xmlydl/ximalaya/auth"
	"github.com/xeptore/xmlydl/ximalaya/downloader"
	"github.com/xeptore/xmlydl/ximalaya/session"
	"github.com/xeptore/xmlydl/ximalaya/types"
)

var (
	ErrDownloadInProgress = errors.New("download in progress")
	ErrInvalidAlbumLink   = errors.New("invalid album link")
	ErrLoginRequired      = auth.ErrLoginRequired
	ErrUnauthorized       = auth.ErrUnauthorized
	ErrLoginInProgress    = auth.ErrLoginInProgress
	ErrInvalidRange       = downloader.ErrInvalidRange
)

var albumIDPattern = regexp.MustCompile(`^[0-9]+$`)

type Client struct {
	conf        config.Ximalaya
	auth        *auth.Auth
	dl          *downloader.Downloader
	downloadSem *semaphore.Weighted
}

func NewClient(conf config.Ximalaya) (*Client, error) {
	a, err := auth.New(conf.CredsDir, conf.Account, conf.Cookie)
	if nil != err {
		return nil, fmt.Errorf("failed to create auth: %v", err)
	}

	return &Client{
		conf:        conf,
		auth:        a,
		dl:          downloader.NewDownloader(conf.BaseURL, conf.Downloader, cache.New()),
		downloadSem: semaphore.NewWeighted(1),
	}, nil
}

func (c *Client) newSession(cookie string) *session.Session {
	return session.New(session.Options{
		Cookie:              cookie,
		UserAgent:           c.conf.UserAgent,
		RequestsPerSecond:   c.conf.Downloader.RequestsPerSecond,
		MaxIdleConnsPerHost: c.conf.Downloader.Concurrency,
	})
}

func closeSession(logger zerolog.Logger, sess *session.Session) {
	if err := sess.Close(); nil != err {
		logger.Error().Err(err).Msg("Failed to close session")
	}
}

// ParseAlbumID accepts a bare album ID or an album page link such as
// https://www.ximalaya.com/album/12345.
func ParseAlbumID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if albumIDPattern.MatchString(s) {
		return s, nil
	}

	u, err := url.Parse(s)
	if nil != err || u.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidAlbumLink, s)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || !albumIDPattern.MatchString(parts[1]) {
		return "", fmt.Errorf("%w: %s", ErrInvalidAlbumLink, s)
	}

	return parts[1], nil
}

func (c *Client) CurrentUser(ctx context.Context, logger zerolog.Logger) (string, error) {
	cookie, err := c.auth.Cookie()
	if nil != err {
		return "", err
	}

	sess := c.newSession(cookie)
	defer closeSession(logger, sess)

	return auth.CurrentUser(ctx, logger, sess, c.conf.BaseURL, config.Seconds(c.conf.Downloader.Timeouts.GetUserInfo))
}

// Login stores the cookie obtained from src once the service accepts it.
func (c *Client) Login(ctx context.Context, logger zerolog.Logger, src auth.CookieSource) (string, error) {
	return c.auth.Login(ctx, logger, src, func(ctx context.Context, cookie string) (string, error) {
		sess := c.newSession(cookie)
		defer closeSession(logger, sess)

		return auth.CurrentUser(ctx, logger, sess, c.conf.BaseURL, config.Seconds(c.conf.Downloader.Timeouts.GetUserInfo))
	})
}

func (c *Client) CookieFilePath() string {
	return c.auth.CookieFilePath()
}

type AlbumInfo struct {
	Album *types.Album
	Kind  types.AlbumKind
}

func (c *Client) AlbumInfo(ctx context.Context, logger zerolog.Logger, albumID string) (*AlbumInfo, error) {
	sess := c.newSession(c.optionalCookie(logger))
	defer closeSession(logger, sess)

	album, err := c.dl.GetAlbum(ctx, logger, sess, albumID)
	if nil != err {
		return nil, err
	}

	kind, err := c.dl.GetAlbumKind(ctx, logger, sess, albumID)
	if nil != err {
		return nil, err
	}

	return &AlbumInfo{Album: album, Kind: kind}, nil
}

type DownloadRequest struct {
	AlbumID string
	// Start and End select 1-based inclusive track positions. Zero values
	// select from the first and up to the last track.
	Start     int
	End       int
	Quality   types.Quality
	Numbered  bool
	TargetDir string
	OnJobs    func(n int)
	OnOutcome func(types.DownloadOutcome)
}

type DownloadResult struct {
	Album  *types.Album
	Kind   types.AlbumKind
	Report *types.BatchReport
}

// TryDownloadAlbum downloads the requested range of an album. Only one
// download runs at a time; concurrent calls get ErrDownloadInProgress.
func (c *Client) TryDownloadAlbum(
	ctx context.Context,
	logger zerolog.Logger,
	req DownloadRequest,
) (*DownloadResult, error) {
	if !c.downloadSem.TryAcquire(1) {
		logger.Debug().Msg("Another download in progress")
		return nil, ErrDownloadInProgress
	}
	defer c.downloadSem.Release(1)

	logger = logger.With().Str("album_id", req.AlbumID).Logger()

	sess := c.newSession(c.optionalCookie(logger))
	defer closeSession(logger, sess)

	album, err := c.dl.GetAlbum(ctx, logger, sess, req.AlbumID)
	if nil != err {
		return nil, err
	}

	kind, err := c.dl.GetAlbumKind(ctx, logger, sess, req.AlbumID)
	if nil != err {
		return nil, err
	}

	logger.Info().Str("title", album.Title).Str("kind", kind.String()).Int("tracks", len(album.Tracks)).Msg("Album found")
	if kind == types.AlbumKindNotPurchased {
		logger.Warn().Msg("Album is not purchased, only free tracks will be downloaded")
	}

	start, end := req.Start, req.End
	if start == 0 {
		start = 1
	}
	if end == 0 {
		end = len(album.Tracks)
	}

	report, err := c.dl.RunBatch(ctx, logger, sess, album.Tracks, downloader.BatchOptions{
		Start:     start,
		End:       end,
		Quality:   req.Quality,
		Numbered:  req.Numbered,
		TargetDir: req.TargetDir,
		AlbumName: album.Title,
		OnJobs:    req.OnJobs,
		OnOutcome: req.OnOutcome,
	})
	if nil != err {
		return &DownloadResult{Album: album, Kind: kind, Report: report}, fmt.Errorf("failed to download album: %w", err)
	}

	logger.Info().Dict("report", report.ToDict()).Msg("Album download finished")

	return &DownloadResult{Album: album, Kind: kind, Report: report}, nil
}

func (c *Client) optionalCookie(logger zerolog.Logger) string {
	cookie, err := c.auth.Cookie()
	if nil != err {
		logger.Warn().Msg("No cookie is stored, only free tracks are available")
		return ""
	}

	return cookie
}
