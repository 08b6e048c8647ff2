package auth

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/xeptore/xmlydl/ximalaya/fs"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrLoginRequired      = errors.New("login required")
	ErrLoginInProgress    = errors.New("another login flow is in progress")
	ErrAuth               = errors.New("authentication failed")
	ErrUnexpectedResponse = errors.New("unexpected user info response")
)

// Auth keeps the session cookie of one account. A cookie given through the
// environment takes precedence over the stored one until the next login.
type Auth struct {
	cookieFile fs.CookieFile
	loginSem   chan struct{}
	cookie     atomic.Pointer[string]
}

func New(dir, account, envCookie string) (*Auth, error) {
	cookieFile := fs.CookieFileFrom(dir, account)

	cookie := envCookie
	if cookie == "" {
		stored, err := cookieFile.Read()
		if nil != err && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read cookie file: %w", err)
		}
		cookie = stored
	}

	a := &Auth{
		cookieFile: cookieFile,
		loginSem:   make(chan struct{}, 1),
		cookie:     atomic.Pointer[string]{},
	}
	a.cookie.Store(&cookie)

	return a, nil
}

// Cookie returns the current cookie or ErrLoginRequired when there is none.
func (a *Auth) Cookie() (string, error) {
	if c := *a.cookie.Load(); c != "" {
		return c, nil
	}

	return "", ErrLoginRequired
}

func (a *Auth) CookieFilePath() string {
	return a.cookieFile.Path()
}

func (a *Auth) store(cookie string) error {
	if err := a.cookieFile.Write(cookie); nil != err {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	a.cookie.Store(&cookie)

	return nil
}
