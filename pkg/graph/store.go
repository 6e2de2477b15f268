package graph

import "sync/atomic"

// Store publishes snapshots to readers. Publishing swaps a single atomic
// pointer, so a reader that grabbed the current snapshot keeps operating on
// it unchanged while new queries see the replacement: old-or-new, never a
// mix. There is no locking on the read path.
type Store struct {
	cur atomic.Pointer[Snapshot]
}

// NewStore returns an empty store. Queries against it fail with
// ErrNoSnapshot until the first Publish.
func NewStore() *Store {
	return &Store{}
}

// Publish makes snap the current snapshot for all subsequent reads.
// The previous snapshot stays valid for readers still holding it.
func (s *Store) Publish(snap *Snapshot) {
	s.cur.Store(snap)
}

// Current returns the latest published snapshot.
func (s *Store) Current() (*Snapshot, bool) {
	snap := s.cur.Load()
	return snap, snap != nil
}
