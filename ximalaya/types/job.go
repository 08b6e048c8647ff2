package types

import (
	"github.com/rs/zerolog"
)

// DownloadJob is the unit of requeue between global retry generations. Only
// Generation changes between submissions.
type DownloadJob struct {
	DisplayName string
	SourceURL   string
	AlbumName   string
	TargetDir   string
	Generation  int
	Ordinal     string
}

func (j DownloadJob) WithGeneration(g int) DownloadJob {
	j.Generation = g
	return j
}

func (j DownloadJob) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("display_name", j.DisplayName).
		Str("album", j.AlbumName).
		Str("ordinal", j.Ordinal).
		Int("generation", j.Generation)
}

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeSkipped
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	}

	return "unknown"
}

type DownloadOutcome struct {
	Kind  OutcomeKind
	Job   DownloadJob
	Path  string
	Bytes int64
	Err   error
}

func (o DownloadOutcome) NeedsRetry() bool {
	return o.Kind == OutcomeFailed
}

type BatchReport struct {
	Succeeded         int
	Skipped           int
	Bytes             int64
	PermanentlyFailed []DownloadJob
}

func (r BatchReport) Submitted() int {
	return r.Succeeded + r.Skipped + len(r.PermanentlyFailed)
}

func (r BatchReport) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Int("succeeded", r.Succeeded).
		Int("skipped", r.Skipped).
		Int("failed", len(r.PermanentlyFailed)).
		Int64("bytes", r.Bytes)
}
