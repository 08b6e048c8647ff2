package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/xeptore/xmlydl/config"
	"github.com/xeptore/xmlydl/httputil"
	"github.com/xeptore/xmlydl/ximalaya/session"
	"github.com/xeptore/xmlydl/ximalaya/types"
	"github.com/xeptore/xmlydl/ximalaya/urlcrypt"
)

// Resolve fetches the play URLs of a track. It returns ErrNotEntitled when
// the session is not authorized to play the track.
func (d *Downloader) Resolve(
	ctx context.Context,
	logger zerolog.Logger,
	sess *session.Session,
	id string,
) (track *types.ResolvedTrack, err error) {
	reqURL := d.baseURL + fmt.Sprintf(trackInfoPath, time.Now().UnixMilli())

	params := make(url.Values, 3)
	params.Add("device", "web")
	params.Add("trackId", id)
	params.Add("trackQualityLevel", "2")

	resp, err := sess.Get(ctx, reqURL, params, config.Seconds(d.conf.Timeouts.GetTrackInfo))
	if nil != err {
		return nil, fmt.Errorf("failed to send get track info request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close get track info response body")
			err = errors.Join(err, fmt.Errorf("failed to close get track info response body: %v", closeErr))
		}
	}()

	if err := httputil.CheckStatus(resp, http.StatusOK); nil != err {
		return nil, err
	}

	respBytes, err := httputil.ReadResponseBody(resp)
	if nil != err {
		return nil, err
	}

	var respBody struct {
		TrackInfo *struct {
			Title        string `json:"title"`
			IsAuthorized bool   `json:"isAuthorized"`
			PlayURLList  []struct {
				Type string `json:"type"`
				URL  string `json:"url"`
			} `json:"playUrlList"`
		} `json:"trackInfo"`
	}
	if err := json.Unmarshal(respBytes, &respBody); nil != err {
		logger.Error().Err(err).Bytes("response_body", respBytes).Msg("Failed to decode track info response")
		return nil, fmt.Errorf("%w: failed to decode track info response: %v", ErrUnexpectedResponse, err)
	}

	info := respBody.TrackInfo
	if nil == info {
		logger.Error().Bytes("response_body", respBytes).Msg("Track info response has no track info")
		return nil, fmt.Errorf("%w: track info response has no track info", ErrUnexpectedResponse)
	}

	if !info.IsAuthorized {
		return nil, ErrNotEntitled
	}

	out := types.ResolvedTrack{ID: id, Title: info.Title, URLs: [3]string{}}
	var found bool
	for _, p := range info.PlayURLList {
		q, ok := types.QualityOfPlayURLType(p.Type)
		if !ok || p.URL == "" {
			continue
		}

		plain, err := urlcrypt.DecryptURL(p.URL)
		if nil != err {
			return nil, fmt.Errorf("failed to decrypt %s play URL: %w", p.Type, err)
		}
		out.URLs[q] = plain
		found = true
	}

	if !found {
		logger.Error().Bytes("response_body", respBytes).Msg("Track info response has no known play URL")
		return nil, fmt.Errorf("%w: track has no known play URL", ErrUnexpectedResponse)
	}

	return &out, nil
}
