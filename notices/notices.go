// Package notices crawls channel notice boards for a roster of streamers
// and persists the posts. Crawling runs in fixed-size batches: targets
// inside a batch run in parallel, batches run one after another, and every
// batch's findings are stored before the next batch starts so a crash in
// batch three keeps batches one and two.
package notices

import "github.com/hazyhaar/soopstat/notices/internal/store"

// Notice is one stored channel notice.
type Notice = store.Notice

// Target is one streamer whose board gets crawled.
type Target = store.Target

// Store persists notices and targets.
type Store = store.Store

// ErrTargetNotFound is returned when a looked-up target is not registered.
var ErrTargetNotFound = store.ErrNotFound

// OpenStore opens (creating if needed) the notices database at path.
func OpenStore(path string) (*Store, error) {
	return store.Open(path)
}
