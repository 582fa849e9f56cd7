package notebook

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Word is one captured vocabulary entry. Date is the capture timestamp in
// milliseconds since the epoch and doubles as the remote dedup key.
type Word struct {
	ID          string `json:"id,omitempty"`
	Text        string `json:"text"`
	Context     string `json:"context"`
	Translation string `json:"trans"`
	URL         string `json:"url"`
	Date        int64  `json:"date"`
	Note        string `json:"note"`
}

// SyncRun is the outcome of one sync pass.
type SyncRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Created    int
	Existing   int
	Unenriched int
	Failed     int
	Error      string
}
