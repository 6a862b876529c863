package sync

// Band classifies a last-synced revision relative to the other tracked files
type Band int

const (
	BandOldest Band = iota
	BandMiddle
	BandNewest
)

// String returns the band name used in JSON output
func (b Band) String() string {
	switch b {
	case BandOldest:
		return "oldest"
	case BandMiddle:
		return "middle"
	case BandNewest:
		return "newest"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler
func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Bands partitions the revision range [Low, Upper) into three contiguous
// ranges: [Low, Mid) oldest, [Mid, High) middle, [High, Upper) newest.
type Bands struct {
	Low   int
	Mid   int
	High  int
	Upper int
}

// StatusLine is one row of the sync-status report
type StatusLine struct {
	File       string  `json:"file"`
	LastSynced int     `json:"last_synced"`
	Base       int     `json:"base"`
	Lag        int     `json:"lag"`
	Percent    float64 `json:"percent"`
	Band       Band    `json:"band"`
}

// Report is the sync-status report in manifest order
type Report struct {
	Lines []StatusLine `json:"files"`
	Bands Bands        `json:"bands"`
}

// FileResult records what a sync did for one tracked file
type FileResult struct {
	File       string
	From       int
	To         int
	Changed    bool
	DiffPath   string
	MergeError error
	Advanced   bool
}
