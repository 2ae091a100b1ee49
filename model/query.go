package model

// LibraryFilter selects a subset of the library by track type.
type LibraryFilter string

const (
	LibraryFilterAll       LibraryFilter = "all"
	LibraryFilterRemixes   LibraryFilter = "remixes"
	LibraryFilterGenerated LibraryFilter = "generated"
)

// ParseLibraryFilter maps a raw query value to a LibraryFilter. Unknown
// values fall back to "all" rather than being rejected.
func ParseLibraryFilter(s string) LibraryFilter {
	switch LibraryFilter(s) {
	case LibraryFilterRemixes, LibraryFilterGenerated:
		return LibraryFilter(s)
	default:
		return LibraryFilterAll
	}
}

// RemixSort controls the ordering of remix-history results. It is a sort,
// not a predicate.
type RemixSort string

const (
	RemixSortAll    RemixSort = "all" // cache order preserved
	RemixSortRecent RemixSort = "recent"
	RemixSortOldest RemixSort = "oldest"
	RemixSortAlpha  RemixSort = "a-z"
)

// ParseRemixSort maps a raw query value to a RemixSort, defaulting to "all".
func ParseRemixSort(s string) RemixSort {
	switch RemixSort(s) {
	case RemixSortRecent, RemixSortOldest, RemixSortAlpha:
		return RemixSort(s)
	default:
		return RemixSortAll
	}
}

// QueryResult is the answer to a library or remix-history query. Total is
// the filtered count before truncation to the limit, so callers can show
// "N more". Degraded marks an empty result served because a refresh failed,
// as opposed to an empty result produced by filtering.
type QueryResult struct {
	Tracks   []*Track `json:"tracks"`
	Total    int      `json:"total"`
	Degraded bool     `json:"degraded,omitempty"`
}
