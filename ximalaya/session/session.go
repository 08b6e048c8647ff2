package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/xeptore/xmlydl/ratelimit"
)

var ErrSessionClosed = errors.New("session is closed")

// Session is the HTTP handle shared by every task of one batch. It attaches
// the account cookie and user agent to each request and must not be used
// after Close.
type Session struct {
	transport *http.Transport
	limiter   *rate.Limiter
	cookie    string
	userAgent string
	closed    atomic.Bool
}

type Options struct {
	Cookie              string
	UserAgent           string
	RequestsPerSecond   int
	MaxIdleConnsPerHost int
}

func New(opts Options) *Session {
	t := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert
	if opts.MaxIdleConnsPerHost > 0 {
		t.MaxIdleConnsPerHost = opts.MaxIdleConnsPerHost
	}

	return &Session{
		transport: t,
		limiter:   ratelimit.NewLimiter(opts.RequestsPerSecond),
		cookie:    opts.Cookie,
		userAgent: opts.UserAgent,
		closed:    atomic.Bool{},
	}
}

// Get sends a GET request for rawURL with params merged into its query. The
// timeout covers the whole exchange including reading the response body.
func (s *Session) Get(
	ctx context.Context,
	rawURL string,
	params url.Values,
	timeout time.Duration,
) (*http.Response, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}

	reqURL, err := url.Parse(rawURL)
	if nil != err {
		return nil, fmt.Errorf("failed to parse request URL: %v", err)
	}

	if len(params) > 0 {
		q := reqURL.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		reqURL.RawQuery = q.Encode()
	}

	if err := s.limiter.Wait(ctx); nil != err {
		return nil, fmt.Errorf("failed to wait for request rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if nil != err {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	if s.cookie != "" {
		req.Header.Set("Cookie", s.cookie)
	}

	client := http.Client{ //nolint:exhaustruct
		Transport: s.transport,
		Timeout:   timeout,
	}
	resp, err := client.Do(req)
	if nil != err {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSessionClosed
	}

	s.transport.CloseIdleConnections()

	return nil
}
