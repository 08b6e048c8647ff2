package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/xeptore/xmlydl/httputil"
	"github.com/xeptore/xmlydl/ximalaya/session"
)

const currentUserPath = "/revision/my/getCurrentUserInfo"

// CurrentUser returns the user name the session cookie belongs to.
func CurrentUser(
	ctx context.Context,
	logger zerolog.Logger,
	sess *session.Session,
	baseURL string,
	timeout time.Duration,
) (name string, err error) {
	resp, err := sess.Get(ctx, strings.TrimRight(baseURL, "/")+currentUserPath, nil, timeout)
	if nil != err {
		return "", fmt.Errorf("failed to send get current user request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close get current user response body")
			err = errors.Join(err, fmt.Errorf("failed to close get current user response body: %v", closeErr))
		}
	}()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", ErrUnauthorized
	default:
		if err := httputil.CheckStatus(resp, http.StatusOK); nil != err {
			return "", err
		}
	}

	respBytes, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return "", err
	}

	ret, err := httputil.RetCode(respBytes)
	if nil != err {
		logger.Error().Err(err).Bytes("response_body", respBytes).Msg("Failed to get current user response code")
		return "", fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	if ret != httputil.RetOK {
		logger.Debug().Int("ret", ret).Msg("Current user request was not accepted")
		return "", ErrUnauthorized
	}

	userName := gjson.GetBytes(respBytes, "data.userName")
	if userName.Type != gjson.String || userName.String() == "" {
		logger.Error().Bytes("response_body", respBytes).Msg("Current user response has no user name")
		return "", fmt.Errorf("%w: missing user name", ErrUnexpectedResponse)
	}

	return userName.String(), nil
}
