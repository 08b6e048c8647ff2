package types

type AlbumKind int

const (
	AlbumKindFree AlbumKind = iota
	AlbumKindPurchased
	AlbumKindNotPurchased
)

func (k AlbumKind) String() string {
	switch k {
	case AlbumKindFree:
		return "free"
	case AlbumKindPurchased:
		return "purchased"
	case AlbumKindNotPurchased:
		return "not-purchased"
	}

	return "unknown"
}

type Album struct {
	ID     string
	Title  string
	Tracks []TrackDescriptor
}
