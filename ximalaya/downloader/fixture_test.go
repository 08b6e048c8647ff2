package downloader_test

import (
	"bytes"
	"crypto/aes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/xeptore/xmlydl/cache"
	"github.com/xeptore/xmlydl/config"
	"github.com/xeptore/xmlydl/must"
	"github.com/xeptore/xmlydl/ximalaya/downloader"
	"github.com/xeptore/xmlydl/ximalaya/session"
	"github.com/xeptore/xmlydl/ximalaya/types"
)

var (
	allPlayURLTypes = []string{types.PlayURLTypeM4A128, types.PlayURLTypeMP364, types.PlayURLTypeMP332}
	audioBody       = bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x64, 0x00, 0x0f, 0xf0, 0x00}, 2048)
)

const htmlBody = `<!DOCTYPE html><html><head><title>Forbidden</title></head><body>blocked</body></html>`

func encryptURL(plaintext string) string {
	key := must.Get(hex.DecodeString("aaad3e4fd540b0f79dca95606e72bf93"))
	block := must.Get(aes.NewCipher(key))

	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	data := append([]byte(plaintext), bytes.Repeat([]byte{byte(pad)}, pad)...)

	out := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		block.Encrypt(out[i:i+aes.BlockSize], data[i:i+aes.BlockSize])
	}

	return strings.TrimRight(base64.URLEncoding.EncodeToString(out), "=")
}

type fakeTrack struct {
	ID           string
	Title        string
	Unauthorized bool
	FailResolve  bool
	Types        []string
	// MediaFailures is the number of leading media requests answered with a
	// server error. Negative fails every request.
	MediaFailures int
	HTML          bool
}

func fakeTracks(n int) []fakeTrack {
	return lo.Times(n, func(i int) fakeTrack {
		return fakeTrack{
			ID:            strconv.Itoa(1000 + i + 1),
			Title:         fmt.Sprintf("Track %d", i+1),
			Unauthorized:  false,
			FailResolve:   false,
			Types:         allPlayURLTypes,
			MediaFailures: 0,
			HTML:          false,
		}
	})
}

func descriptors(albumTitle string, tracks []fakeTrack) []types.TrackDescriptor {
	return lo.Map(tracks, func(t fakeTrack, i int) types.TrackDescriptor {
		return types.TrackDescriptor{ID: t.ID, Title: t.Title, AlbumTitle: albumTitle, Index: i + 1}
	})
}

type fakeServer struct {
	*httptest.Server

	albumTitle string
	tracks     []fakeTrack
	byID       map[string]int
	isPaid     bool
	hasBuy     bool

	mu          sync.Mutex
	pageHits    int
	resolveHits map[string]int
	mediaHits   map[string]int
	cookies     []string
}

func newFakeServer(t *testing.T, albumTitle string, tracks []fakeTrack) *fakeServer {
	t.Helper()

	f := &fakeServer{
		Server:      nil,
		albumTitle:  albumTitle,
		tracks:      tracks,
		byID:        make(map[string]int, len(tracks)),
		isPaid:      false,
		hasBuy:      false,
		mu:          sync.Mutex{},
		pageHits:    0,
		resolveHits: make(map[string]int),
		mediaHits:   make(map[string]int),
		cookies:     nil,
	}
	for i, tr := range tracks {
		f.byID[tr.ID] = i
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/revision/album/v1/getTracksList", f.handleTracksList)
	mux.HandleFunc("/revision/album/v1/simple", f.handleAlbumSimple)
	mux.HandleFunc("/mobile-playpage/track/v3/baseInfo/", f.handleTrackInfo)
	mux.HandleFunc("/media/", f.handleMedia)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)

	return f
}

func (f *fakeServer) SetAlbumKind(isPaid, hasBuy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.isPaid = isPaid
	f.hasBuy = hasBuy
}

func (f *fakeServer) PageHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.pageHits
}

func (f *fakeServer) ResolveHits(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.resolveHits[id]
}

func (f *fakeServer) MediaHits(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.mediaHits[id]
}

func (f *fakeServer) Cookies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.cookies...)
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	must.NilErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func (f *fakeServer) handleTracksList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.pageHits++
	f.mu.Unlock()

	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("pageNum"))
	must.NilErr(err)
	size, err := strconv.Atoi(q.Get("pageSize"))
	must.NilErr(err)

	from := min((page-1)*size, len(f.tracks))
	to := min(from+size, len(f.tracks))
	tracks := lo.Map(f.tracks[from:to], func(t fakeTrack, i int) map[string]any {
		return map[string]any{
			"index":      from + i + 1,
			"trackId":    lo.Must(strconv.ParseInt(t.ID, 10, 64)),
			"title":      t.Title,
			"albumTitle": f.albumTitle,
		}
	})

	writeJSON(w, map[string]any{
		"ret": 200,
		"data": map[string]any{
			"albumId":         q.Get("albumId"),
			"trackTotalCount": len(f.tracks),
			"pageNum":         page,
			"pageSize":        size,
			"tracks":          tracks,
		},
	})
}

func (f *fakeServer) handleAlbumSimple(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	writeJSON(w, map[string]any{
		"ret": 200,
		"data": map[string]any{
			"albumPageMainInfo": map[string]any{
				"albumTitle": f.albumTitle,
				"isPaid":     f.isPaid,
				"hasBuy":     f.hasBuy,
			},
		},
	})
}

func mediaExt(typ string) string {
	if typ == types.PlayURLTypeM4A128 {
		return "m4a"
	}

	return "mp3"
}

func (f *fakeServer) handleTrackInfo(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("trackId")

	f.mu.Lock()
	f.resolveHits[id]++
	f.mu.Unlock()

	i, ok := f.byID[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	track := f.tracks[i]
	if track.FailResolve {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
		return
	}

	var playURLs []map[string]any
	if !track.Unauthorized {
		playURLs = lo.Map(track.Types, func(typ string, _ int) map[string]any {
			return map[string]any{
				"type": typ,
				"url":  encryptURL(f.URL + "/media/" + typ + "/" + id + "." + mediaExt(typ) + "?sign=abc&timestamp=1700000000"),
			}
		})
	}

	writeJSON(w, map[string]any{
		"ret": 0,
		"trackInfo": map[string]any{
			"trackId":      id,
			"title":        track.Title,
			"isAuthorized": !track.Unauthorized,
			"playUrlList":  playURLs,
		},
	})
}

func (f *fakeServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	id, _, _ := strings.Cut(name, ".")

	f.mu.Lock()
	f.mediaHits[id]++
	hits := f.mediaHits[id]
	f.cookies = append(f.cookies, r.Header.Get("Cookie"))
	f.mu.Unlock()

	track := f.tracks[f.byID[id]]
	switch {
	case track.MediaFailures < 0 || hits <= track.MediaFailures:
		w.WriteHeader(http.StatusBadGateway)
	case track.HTML:
		_, _ = w.Write([]byte(htmlBody))
	default:
		_, _ = w.Write(audioBody)
	}
}

func newDownloader(baseURL string) *downloader.Downloader {
	conf := config.Downloader{
		Dir:               "",
		Quality:           "high",
		Numbered:          lo.ToPtr(true),
		Concurrency:       4,
		RequestsPerSecond: 0,
		Attempts:          3,
		Generations:       lo.ToPtr(2),
		RetryDelay:        config.Duration{Duration: 0},
		Timeouts: config.Timeouts{
			GetUserInfo:    5,
			GetAlbumInfo:   5,
			GetAlbumTracks: 5,
			GetTrackInfo:   5,
			DownloadTrack:  5,
		},
	}

	return downloader.NewDownloader(baseURL, conf, cache.New())
}

func newSession(t *testing.T) *session.Session {
	t.Helper()

	s := session.New(session.Options{
		Cookie:              "1&_token=test",
		UserAgent:           config.DefaultUserAgent,
		RequestsPerSecond:   0,
		MaxIdleConnsPerHost: 4,
	})
	t.Cleanup(func() { _ = s.Close() })

	return s
}
