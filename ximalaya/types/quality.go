package types

import (
	"fmt"
)

type Quality int

const (
	QualityLow Quality = iota
	QualityMedium
	QualityHigh
)

func (q Quality) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	}

	return "unknown"
}

func (q Quality) Valid() bool {
	return q >= QualityLow && q <= QualityHigh
}

func ParseQuality(s string) (Quality, error) {
	switch s {
	case "low", "0":
		return QualityLow, nil
	case "medium", "1":
		return QualityMedium, nil
	case "high", "2":
		return QualityHigh, nil
	default:
		return 0, fmt.Errorf("unsupported quality %q", s)
	}
}

// Play URL type identifiers as returned in trackInfo.playUrlList.
const (
	PlayURLTypeM4A128 = "M4A_128"
	PlayURLTypeMP364  = "MP3_64"
	PlayURLTypeMP332  = "MP3_32"
)

func QualityOfPlayURLType(typ string) (Quality, bool) {
	switch typ {
	case PlayURLTypeM4A128:
		return QualityHigh, true
	case PlayURLTypeMP364:
		return QualityMedium, true
	case PlayURLTypeMP332:
		return QualityLow, true
	default:
		return 0, false
	}
}
