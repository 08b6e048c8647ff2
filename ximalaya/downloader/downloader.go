package downloader

import (
	"errors"
	"strings"

	"github.com/xeptore/xmlydl/cache"
	"github.com/xeptore/xmlydl/config"
)

const (
	albumTracksPath = "/revision/album/v1/getTracksList"
	albumSimplePath = "/revision/album/v1/simple"
	trackInfoPath   = "/mobile-playpage/track/v3/baseInfo/%d"
	pageSize        = 100
)

var (
	ErrNotEntitled        = errors.New("track is not entitled to current session")
	ErrUnexpectedResponse = errors.New("unexpected response")
	ErrUnexpectedContent  = errors.New("unexpected track content")
	ErrEmptyAlbum         = errors.New("album has no tracks")
	ErrInvalidRange       = errors.New("invalid track range")
)

type Downloader struct {
	baseURL string
	conf    config.Downloader
	cache   *cache.Cache
}

func NewDownloader(baseURL string, conf config.Downloader, c *cache.Cache) *Downloader {
	return &Downloader{
		baseURL: strings.TrimRight(baseURL, "/"),
		conf:    conf,
		cache:   c,
	}
}

func (d *Downloader) concurrency() int {
	if d.conf.Concurrency <= 0 {
		return -1
	}

	return d.conf.Concurrency
}

func (d *Downloader) attempts() uint64 {
	if d.conf.Attempts <= 0 {
		return 1
	}

	return uint64(d.conf.Attempts)
}

func (d *Downloader) generations() int {
	if nil == d.conf.Generations {
		return 0
	}

	return *d.conf.Generations
}
