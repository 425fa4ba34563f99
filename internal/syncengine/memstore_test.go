package syncengine

import (
	"context"
	"sync"
)

// memStore is a minimal in-memory Store for unit-testing engine logic
// (trash coalescing, apply, error handling) without a real SQLite file,
// matching Design Notes §9's "substitute a stub with zero boilerplate"
// philosophy already applied to Side.
type memStore struct {
	mu      sync.Mutex
	docs    map[string]*Metadata
	changes []*ChangeEntry
	seq     uint64
	local   uint64
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]*Metadata)}
}

func (m *memStore) Get(id string) (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (m *memStore) GetPreviousRev(id string, revN int) (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.changes) - 1; i >= 0; i-- {
		if m.changes[i].ID == id && extractRev(m.changes[i].Doc.Rev) == revN {
			return m.changes[i].Doc.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) Put(doc *Metadata) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.docs[doc.ID]
	if exists && extractRev(doc.Rev) != extractRev(cur.Rev) {
		return "", ErrConflict
	}
	if !exists && extractRev(doc.Rev) != 0 {
		return "", ErrConflict
	}

	doc.Rev = nextRev(doc.Rev)
	m.docs[doc.ID] = doc.Clone()
	m.seq++
	m.changes = append(m.changes, &ChangeEntry{Seq: m.seq, ID: doc.ID, Doc: doc.Clone(), Deleted: doc.Deleted})
	return doc.Rev, nil
}

func (m *memStore) NextChange(since uint64, byPath bool) (*ChangeEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.changes {
		if c.Seq <= since {
			continue
		}
		if byPath && isInternalID(c.ID) {
			continue
		}
		return c, true, nil
	}
	return nil, false, nil
}

func (m *memStore) WaitForChange(ctx context.Context, since uint64) error {
	return nil
}

func (m *memStore) Lock(ctx context.Context) (func(), error) {
	return func() {}, nil
}

func (m *memStore) GetLocalSeq() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.local, nil
}

func (m *memStore) SetLocalSeq(seq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.local = seq
	return nil
}

func (m *memStore) EnsureIndexes() error { return nil }
func (m *memStore) Close() error         { return nil }
