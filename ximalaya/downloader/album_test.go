package downloader_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/xmlydl/ximalaya/downloader"
	"github.com/xeptore/xmlydl/ximalaya/types"
)

func TestGetAlbumPaginates(t *testing.T) {
	t.Parallel()

	tracks := fakeTracks(250)
	srv := newFakeServer(t, "Long Album", tracks)
	d := newDownloader(srv.URL)
	sess := newSession(t)

	album, err := d.GetAlbum(context.Background(), zerolog.Nop(), sess, "42")
	require.NoError(t, err)

	assert.Equal(t, "42", album.ID)
	assert.Equal(t, "Long Album", album.Title)
	require.Len(t, album.Tracks, 250)
	assert.Equal(t, 3, srv.PageHits())
	for i, track := range album.Tracks {
		assert.Equal(t, i+1, track.Index)
		assert.Equal(t, tracks[i].ID, track.ID)
		assert.Equal(t, tracks[i].Title, track.Title)
		assert.Equal(t, "Long Album", track.AlbumTitle)
	}

	again, err := d.GetAlbum(context.Background(), zerolog.Nop(), sess, "42")
	require.NoError(t, err)
	assert.Same(t, album, again)
	assert.Equal(t, 3, srv.PageHits())
}

func TestGetAlbumEmpty(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t, "Empty", nil)

	_, err := newDownloader(srv.URL).GetAlbum(context.Background(), zerolog.Nop(), newSession(t), "42")
	require.ErrorIs(t, err, downloader.ErrEmptyAlbum)
}

func TestGetAlbumKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		isPaid bool
		hasBuy bool
		want   types.AlbumKind
	}{
		{name: "free", isPaid: false, hasBuy: false, want: types.AlbumKindFree},
		{name: "purchased", isPaid: true, hasBuy: true, want: types.AlbumKindPurchased},
		{name: "not purchased", isPaid: true, hasBuy: false, want: types.AlbumKindNotPurchased},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			srv := newFakeServer(t, "Album", fakeTracks(1))
			srv.SetAlbumKind(test.isPaid, test.hasBuy)

			kind, err := newDownloader(srv.URL).GetAlbumKind(context.Background(), zerolog.Nop(), newSession(t), "42")
			require.NoError(t, err)
			assert.Equal(t, test.want, kind)
		})
	}
}
