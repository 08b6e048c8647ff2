package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"

	"github.com/xeptore/xmlydl/ximalaya/types"
)

var (
	DefaultAlbumTTL     = 1 * time.Hour
	DefaultAlbumKindTTL = 5 * time.Minute
)

type Cache struct {
	Albums     AlbumsCache
	AlbumKinds AlbumKindsCache
}

func New() *Cache {
	albumsCache := ccache.New(
		ccache.Configure[*types.Album]().
			MaxSize(100).
			GetsPerPromote(3).
			PercentToPrune(10),
	)

	albumKindsCache := ccache.New(
		ccache.Configure[types.AlbumKind]().
			MaxSize(1000).
			GetsPerPromote(3).
			PercentToPrune(10),
	)

	return &Cache{
		Albums: AlbumsCache{
			c:   albumsCache,
			mux: sync.Mutex{},
		},
		AlbumKinds: AlbumKindsCache{
			c:   albumKindsCache,
			mux: sync.Mutex{},
		},
	}
}

type AlbumsCache struct {
	c   *ccache.Cache[*types.Album]
	mux sync.Mutex
}

func (c *AlbumsCache) Fetch(
	k string,
	ttl time.Duration,
	fetch func() (*types.Album, error),
) (*ccache.Item[*types.Album], error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	v, err := c.c.Fetch(k, ttl, fetch)
	if nil != err {
		return nil, fmt.Errorf("fetch album: %w", err)
	}

	return v, nil
}

// AlbumKindsCache is keyed by album id and cookie, since entitlement depends
// on the account.
type AlbumKindsCache struct {
	c   *ccache.Cache[types.AlbumKind]
	mux sync.Mutex
}

func (c *AlbumKindsCache) Fetch(
	k string,
	ttl time.Duration,
	fetch func() (types.AlbumKind, error),
) (*ccache.Item[types.AlbumKind], error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	v, err := c.c.Fetch(k, ttl, fetch)
	if nil != err {
		return nil, fmt.Errorf("fetch album kind: %w", err)
	}

	return v, nil
}
