package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/xmlydl/ximalaya/session"
)

func TestSessionAttachesCredentials(t *testing.T) {
	t.Parallel()

	type seen struct {
		cookie    string
		userAgent string
		query     url.Values
	}
	ch := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ch <- seen{cookie: r.Header.Get("Cookie"), userAgent: r.Header.Get("User-Agent"), query: r.URL.Query()}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	s := session.New(session.Options{Cookie: "1&_token=abc", UserAgent: "test-agent"})
	t.Cleanup(func() { _ = s.Close() })

	params := url.Values{"trackId": []string{"42"}}
	resp, err := s.Get(context.Background(), srv.URL+"/path?device=web", params, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	got := <-ch
	assert.Equal(t, "1&_token=abc", got.cookie)
	assert.Equal(t, "test-agent", got.userAgent)
	assert.Equal(t, "42", got.query.Get("trackId"))
	assert.Equal(t, "web", got.query.Get("device"))
}

func TestSessionWithoutCookie(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Cookie"]; ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	s := session.New(session.Options{UserAgent: "test-agent"})
	t.Cleanup(func() { _ = s.Close() })

	resp, err := s.Get(context.Background(), srv.URL, nil, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionClosed(t *testing.T) {
	t.Parallel()

	s := session.New(session.Options{UserAgent: "test-agent"})
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Close(), session.ErrSessionClosed)

	_, err := s.Get(context.Background(), "http://127.0.0.1:1", nil, time.Second)
	require.ErrorIs(t, err, session.ErrSessionClosed)
}
