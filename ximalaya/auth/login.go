package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// CookieSource obtains the cookie of a logged in web session.
type CookieSource interface {
	Cookie(ctx context.Context) (string, error)
}

// VerifyFunc returns the user name the given cookie belongs to.
type VerifyFunc func(ctx context.Context, cookie string) (string, error)

// Login obtains a cookie from src, verifies it and persists it to the
// account cookie file. It returns the logged in user name.
func (a *Auth) Login(
	ctx context.Context,
	logger zerolog.Logger,
	src CookieSource,
	verify VerifyFunc,
) (string, error) {
	select {
	case a.loginSem <- struct{}{}:
		defer func() { <-a.loginSem }()
	default:
		return "", ErrLoginInProgress
	}

	cookie, err := src.Cookie(ctx)
	if nil != err {
		if errors.Is(err, context.Canceled) {
			return "", err
		}

		return "", fmt.Errorf("%w: failed to obtain cookie: %w", ErrAuth, err)
	}

	cookie = strings.TrimSpace(cookie)
	if cookie == "" {
		return "", fmt.Errorf("%w: empty cookie", ErrAuth)
	}

	userName, err := verify(ctx, cookie)
	if nil != err {
		return "", fmt.Errorf("%w: failed to verify cookie: %w", ErrAuth, err)
	}

	if err := a.store(cookie); nil != err {
		return "", err
	}
	logger.Info().Str("user", userName).Str("cookie_file", a.cookieFile.Path()).Msg("Cookie stored")

	return userName, nil
}
