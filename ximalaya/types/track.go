package types

import (
	"github.com/rs/zerolog"
)

// TrackDescriptor is one entry of an album listing.
type TrackDescriptor struct {
	ID         string
	Title      string
	AlbumTitle string
	Index      int
}

// ResolvedTrack is a track the current session is entitled to play.
type ResolvedTrack struct {
	ID    string
	Title string
	URLs  [3]string
}

func (t ResolvedTrack) URL(q Quality) string {
	return t.URLs[q]
}

// SelectURL returns the URL to download for the requested quality. A high
// quality request falls back to medium when no high quality URL exists.
func (t ResolvedTrack) SelectURL(q Quality) (string, Quality) {
	if q == QualityHigh && t.URLs[QualityHigh] == "" {
		q = QualityMedium
	}

	return t.URLs[q], q
}

func (t ResolvedTrack) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("id", t.ID).
		Str("title", t.Title).
		Bool("has_high", t.URLs[QualityHigh] != "").
		Bool("has_medium", t.URLs[QualityMedium] != "").
		Bool("has_low", t.URLs[QualityLow] != "")
}
