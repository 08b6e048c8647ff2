package downloader_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/xmlydl/ximalaya/downloader"
	"github.com/xeptore/xmlydl/ximalaya/session"
	"github.com/xeptore/xmlydl/ximalaya/types"
)

func TestTrackExt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{url: "https://a.xmcdn.com/x/track.m4a", want: "m4a"},
		{url: "https://a.xmcdn.com/x/track.mp3?sign=abc&buy_key=m4a", want: "mp3"},
		{url: "https://a.xmcdn.com/x/track.m4a?", want: "m4a"},
		{url: "ab", want: "ab"},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, downloader.TrackExt(test.url), test.url)
	}
}

func testJob(dir, sourceURL string) types.DownloadJob {
	return types.DownloadJob{
		DisplayName: "1-Track 1",
		SourceURL:   sourceURL,
		AlbumName:   "Album",
		TargetDir:   dir,
		Generation:  0,
		Ordinal:     "1",
	}
}

func TestDownloadCreatesNestedAlbumDirectory(t *testing.T) {
	t.Parallel()

	tracks := fakeTracks(1)
	srv := newFakeServer(t, "Album", tracks)
	dir := filepath.Join(t.TempDir(), "nested", "downloads")

	o := newDownloader(srv.URL).Download(context.Background(), zerolog.Nop(), newSession(t), testJob(dir, srv.URL+"/media/M4A_128/1001.m4a?sign=abc"))
	require.NoError(t, o.Err)

	assert.Equal(t, types.OutcomeSuccess, o.Kind)
	assert.Equal(t, filepath.Join(dir, "Album", "1-Track 1.m4a"), o.Path)
	assert.Equal(t, int64(len(audioBody)), o.Bytes)

	content, err := os.ReadFile(o.Path)
	require.NoError(t, err)
	assert.Equal(t, audioBody, content)
	assert.NoFileExists(t, o.Path+".part")
}

func TestDownloadRetriesWithinAttemptBudget(t *testing.T) {
	t.Parallel()

	tracks := fakeTracks(1)
	tracks[0].MediaFailures = 2
	srv := newFakeServer(t, "Album", tracks)
	dir := t.TempDir()

	o := newDownloader(srv.URL).Download(context.Background(), zerolog.Nop(), newSession(t), testJob(dir, srv.URL+"/media/M4A_128/1001.m4a"))
	require.NoError(t, o.Err)

	assert.Equal(t, types.OutcomeSuccess, o.Kind)
	assert.Equal(t, 3, srv.MediaHits(tracks[0].ID))
}

func TestDownloadFailsAfterAttemptBudget(t *testing.T) {
	t.Parallel()

	tracks := fakeTracks(1)
	tracks[0].MediaFailures = -1
	srv := newFakeServer(t, "Album", tracks)
	dir := t.TempDir()

	job := testJob(dir, srv.URL+"/media/M4A_128/1001.m4a")
	o := newDownloader(srv.URL).Download(context.Background(), zerolog.Nop(), newSession(t), job)

	assert.Equal(t, types.OutcomeFailed, o.Kind)
	assert.True(t, o.NeedsRetry())
	assert.Equal(t, job, o.Job)
	require.Error(t, o.Err)
	assert.Equal(t, 3, srv.MediaHits(tracks[0].ID))
	assert.NoFileExists(t, o.Path)
	assert.NoFileExists(t, o.Path+".part")
}

func TestDownloadWithClosedSession(t *testing.T) {
	t.Parallel()

	tracks := fakeTracks(1)
	srv := newFakeServer(t, "Album", tracks)

	sess := session.New(session.Options{Cookie: "", UserAgent: "test-agent", RequestsPerSecond: 0, MaxIdleConnsPerHost: 0})
	require.NoError(t, sess.Close())

	o := newDownloader(srv.URL).Download(context.Background(), zerolog.Nop(), sess, testJob(t.TempDir(), srv.URL+"/media/M4A_128/1001.m4a"))

	assert.Equal(t, types.OutcomeFailed, o.Kind)
	require.ErrorIs(t, o.Err, session.ErrSessionClosed)
	assert.Zero(t, srv.MediaHits(tracks[0].ID))
}
