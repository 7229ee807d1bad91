package syncer

import (
	"github.com/dileepadev/blogsync/pkg/blogapi"
)

// Snapshot is the remote state captured once at the start of a run
type Snapshot struct {
	bySlug   map[string]blogapi.Record
	maxIndex int
	// Err is set when the listing call failed and the snapshot is empty
	Err error
}

// NewSnapshot indexes records by slug. A later record wins over an earlier
// one with the same slug; records without an index count as zero.
func NewSnapshot(records []blogapi.Record) *Snapshot {
	s := &Snapshot{bySlug: make(map[string]blogapi.Record, len(records))}
	for _, r := range records {
		s.bySlug[r.Slug] = r
		if r.Index > s.maxIndex {
			s.maxIndex = r.Index
		}
	}
	return s
}

// Len returns the number of distinct slugs in the snapshot
func (s *Snapshot) Len() int {
	return len(s.bySlug)
}

// MaxIndex returns the highest index in the snapshot, or zero when empty
func (s *Snapshot) MaxIndex() int {
	return s.maxIndex
}

// Lookup returns the record for slug
func (s *Snapshot) Lookup(slug string) (blogapi.Record, bool) {
	r, ok := s.bySlug[slug]
	return r, ok
}

// Allocator hands out display indexes. Known slugs keep their index; every
// other slug gets the next value after the highest index seen so far.
type Allocator struct {
	snapshot *Snapshot
	next     int
}

// NewAllocator creates an allocator continuing after the snapshot maximum
func NewAllocator(snapshot *Snapshot) *Allocator {
	return &Allocator{snapshot: snapshot, next: snapshot.MaxIndex()}
}

// Assign returns the index for slug and whether it was newly allocated.
// Existing records without a positive index are treated as new.
func (a *Allocator) Assign(slug string) (int, bool) {
	if r, ok := a.snapshot.Lookup(slug); ok && r.Index > 0 {
		return r.Index, false
	}
	a.next++
	return a.next, true
}

// Last returns the highest index handed out or inherited from the snapshot
func (a *Allocator) Last() int {
	return a.next
}
