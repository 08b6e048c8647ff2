package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/xeptore/xmlydl/httputil"
	"github.com/xeptore/xmlydl/unit"
	"github.com/xeptore/xmlydl/ximalaya/fs"
	"github.com/xeptore/xmlydl/ximalaya/session"
)

var rejectedContentTypes = []string{
	"text/html",
	"application/json",
	"text/xml",
}

// TrackExt derives the file extension from the last three characters of a
// media URL, ignoring its query string.
func TrackExt(rawURL string) string {
	p, _, _ := strings.Cut(rawURL, "?")
	if len(p) < 3 {
		return p
	}

	return p[len(p)-3:]
}

// saveTrack streams the media at rawURL into the part file of track and
// moves it to its final path once fully written.
func saveTrack(
	ctx context.Context,
	sess *session.Session,
	rawURL string,
	track fs.Track,
	timeout time.Duration,
) (n int64, err error) {
	resp, err := sess.Get(ctx, rawURL, nil, timeout)
	if nil != err {
		return 0, fmt.Errorf("failed to send download track request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("failed to close download track response body: %v", closeErr))
		}
	}()

	if err := httputil.CheckStatus(resp, http.StatusOK); nil != err {
		return 0, err
	}

	n, err = writePart(track.PartPath(), resp.Body)
	if nil != err {
		return 0, err
	}

	if err := checkContent(track.PartPath()); nil != err {
		return 0, err
	}

	if err := track.Commit(); nil != err {
		return 0, err
	}

	return n, nil
}

func writePart(path string, r io.Reader) (n int64, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o0644)
	if nil != err {
		return 0, fmt.Errorf("failed to open track part file: %v", err)
	}
	defer func() {
		if closeErr := f.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("failed to close track part file: %v", closeErr))
		}
	}()

	n, err = io.CopyBuffer(f, r, make([]byte, 256*unit.Kibibyte))
	if nil != err {
		return 0, fmt.Errorf("failed to write track part file: %w", err)
	}

	if n == 0 {
		return 0, errors.New("track response body is empty")
	}

	if err := f.Sync(); nil != err {
		return 0, fmt.Errorf("failed to sync track part file: %v", err)
	}

	return n, nil
}

func checkContent(path string) error {
	mime, err := mimetype.DetectFile(path)
	if nil != err {
		return fmt.Errorf("failed to detect track part file content type: %v", err)
	}

	for _, t := range rejectedContentTypes {
		if mime.Is(t) {
			return fmt.Errorf("%w: %s", ErrUnexpectedContent, mime.String())
		}
	}

	return nil
}
