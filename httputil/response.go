package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

const RetOK = 200

var ErrTooManyRequests = errors.New("too many requests")

// StatusError is returned for responses with an unexpected status code.
type StatusError struct {
	Code int
	Body []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected response code %d with body: %s", e.Code, string(e.Body))
}

func ReadResponseBody(resp *http.Response) ([]byte, error) {
	respBody, err := io.ReadAll(resp.Body)
	if nil != err {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if len(respBody) == 0 {
		return nil, errors.New("unexpected empty response body")
	}

	return respBody, nil
}

// CheckStatus maps non-expected status codes to errors. The body is consumed
// only when the status is not the expected one.
func CheckStatus(resp *http.Response, expected int) error {
	switch code := resp.StatusCode; code {
	case expected:
		return nil
	case http.StatusTooManyRequests:
		return ErrTooManyRequests
	default:
		respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if nil != err {
			return fmt.Errorf("failed to read %d response body: %w", code, err)
		}

		return &StatusError{Code: code, Body: respBytes}
	}
}

// RetCode extracts the application level "ret" code most web endpoints wrap
// their payload with.
func RetCode(b []byte) (int, error) {
	if !gjson.ValidBytes(b) {
		return 0, errors.New("invalid JSON response body")
	}

	ret := gjson.GetBytes(b, "ret")
	if ret.Type != gjson.Number {
		return 0, errors.New("response body has no numeric ret field")
	}

	return int(ret.Int()), nil
}
