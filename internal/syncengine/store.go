package syncengine

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get and Store.GetPreviousRev when no
// record exists under the given id (or revision retention has elapsed).
var ErrNotFound = errors.New("syncengine: not found")

// ErrConflict is returned by Store.Put when doc.Rev does not match the
// currently stored revision (spec §4.1).
var ErrConflict = errors.New("syncengine: conflict")

// ChangeEntry is one entry from the store's change feed: the document as
// of that sequence, per spec §4.1 ("each entry exposing seq, id, doc").
type ChangeEntry struct {
	Seq     uint64
	ID      string
	Doc     *Metadata
	Deleted bool
}

// Store is the durable, versioned metadata store plus live change feed
// described in spec §4.1. The general "changes(since, {limit, ...})"
// contract collapses here to NextChange + WaitForChange, since the
// reconciliation loop only ever consumes one entry at a time (spec
// §4.3's note on limit:1) and only ever waits for "the first event, then
// cancels the subscription".
type Store interface {
	// Get returns the current record for id, or ErrNotFound.
	Get(id string) (*Metadata, error)

	// GetPreviousRev returns the historical record for id at revision
	// revN, or ErrNotFound if retention has elapsed (the engine treats
	// that as "prev unknown").
	GetPreviousRev(id string, revN int) (*Metadata, error)

	// Put writes doc, assigning it the next revision. It fails with
	// ErrConflict if doc.Rev does not match the currently stored rev.
	// On success it returns the new rev and doc.Rev is updated in
	// place.
	Put(doc *Metadata) (string, error)

	// NextChange returns the first change-feed entry with seq strictly
	// greater than since, restricted to non-internal ids when byPath is
	// true. ok is false when there is no such entry yet.
	NextChange(since uint64, byPath bool) (entry *ChangeEntry, ok bool, err error)

	// WaitForChange blocks until at least one change has committed past
	// since, or ctx is done. It is used to yield back to the OS when
	// idle (spec §4.3 step 2).
	WaitForChange(ctx context.Context, since uint64) error

	// Lock acquires the store's exclusive write lock: it blocks other
	// writers, not readers. The returned func releases it.
	Lock(ctx context.Context) (unlock func(), err error)

	// GetLocalSeq/SetLocalSeq persist the engine's durable cursor,
	// independent of the store's own change-feed sequence.
	GetLocalSeq() (uint64, error)
	SetLocalSeq(seq uint64) error

	// EnsureIndexes is a no-op hook for stores that need to create
	// secondary indexes before first use (spec §4.3 step 1).
	EnsureIndexes() error

	Close() error
}

// internalIDPrefix marks ids reserved for the store's own bookkeeping
// (e.g. design documents); the byPath view excludes them, per spec
// §4.1/§6.
const internalIDPrefix = "_"

func isInternalID(id string) bool {
	return len(id) > 0 && id[0:1] == internalIDPrefix
}
