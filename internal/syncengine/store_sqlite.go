package syncengine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"
	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"
)

// schema mirrors the teacher's sync journal pragma block (WAL,
// busy_timeout, foreign_keys, mmap), generalized from a flat path→etag
// table into an MVCC docs/changes/cursor layout.
const schema = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
PRAGMA mmap_size=268435456;

CREATE TABLE IF NOT EXISTS docs (
	id      TEXT PRIMARY KEY,
	path    TEXT NOT NULL,
	rev_n   INTEGER NOT NULL,
	doc     BLOB NOT NULL,
	deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_docs_path ON docs(path);

CREATE TABLE IF NOT EXISTS changes (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	id      TEXT NOT NULL,
	rev_n   INTEGER NOT NULL,
	doc     BLOB NOT NULL,
	deleted INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_changes_id ON changes(id, rev_n);

CREATE TABLE IF NOT EXISTS cursor (
	k   TEXT PRIMARY KEY,
	seq INTEGER NOT NULL
);
`

const localSeqKey = "localSeq"

// historyRetention bounds how many past revisions per id the changes
// table keeps; older rows are pruned, and GetPreviousRev on a pruned
// revision returns ErrNotFound ("prev unknown"), per spec §4.1/§6.
const historyRetention = 200

// SQLiteStore is the default Store implementation: a single SQLite file
// (via jmoiron/sqlx + mattn/go-sqlite3), an in-process mutex paired with
// a gofrs/flock advisory file lock for Lock(), and an in-memory LRU
// fronting GetPreviousRev (every revision Put writes is cached, so a
// recently written revision is served without a SQLite round trip).
type SQLiteStore struct {
	db    *sqlx.DB
	flock *flock.Flock

	writeMu sync.Mutex // in-process complement to the cross-process flock

	notifyMu sync.Mutex
	notifyCh chan struct{}
	seq      atomic.Uint64

	prevCache *lru.Cache[string, *Metadata]
}

// NewSQLiteStore opens or creates the store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}

	cache, err := lru.New[string, *Metadata](256)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init revision cache: %w", err)
	}

	s := &SQLiteStore{
		db:        db,
		flock:     flock.New(path + ".lock"),
		notifyCh:  make(chan struct{}),
		prevCache: cache,
	}

	var maxSeq sql.NullInt64
	if err := db.Get(&maxSeq, "SELECT MAX(seq) FROM changes"); err == nil && maxSeq.Valid {
		s.seq.Store(uint64(maxSeq.Int64))
	}

	return s, nil
}

func (s *SQLiteStore) EnsureIndexes() error {
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type docRow struct {
	ID      string `db:"id"`
	Path    string `db:"path"`
	RevN    int    `db:"rev_n"`
	Doc     []byte `db:"doc"`
	Deleted bool   `db:"deleted"`
}

func decodeDoc(raw []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &m, nil
}

func (s *SQLiteStore) Get(id string) (*Metadata, error) {
	var row docRow
	err := s.db.Get(&row, "SELECT id, path, rev_n, doc, deleted FROM docs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return decodeDoc(row.Doc)
}

func (s *SQLiteStore) GetPreviousRev(id string, revN int) (*Metadata, error) {
	cacheKey := fmt.Sprintf("%s@%d", id, revN)
	if cached, ok := s.prevCache.Get(cacheKey); ok {
		return cached.Clone(), nil
	}

	var row docRow
	err := s.db.Get(&row,
		"SELECT id, rev_n, doc FROM changes WHERE id = ? AND rev_n = ? ORDER BY seq DESC LIMIT 1",
		id, revN)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get previous rev %s@%d: %w", id, revN, err)
	}
	doc, err := decodeDoc(row.Doc)
	if err != nil {
		return nil, err
	}
	s.prevCache.Add(cacheKey, doc)
	return doc.Clone(), nil
}

func (s *SQLiteStore) Put(doc *Metadata) (string, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return "", fmt.Errorf("begin put: %w", err)
	}
	defer tx.Rollback()

	var curRevN sql.NullInt64
	err = tx.Get(&curRevN, "SELECT rev_n FROM docs WHERE id = ?", doc.ID)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("put %s: %w", doc.ID, err)
	}

	if exists {
		if extractRev(doc.Rev) != int(curRevN.Int64) {
			return "", ErrConflict
		}
	} else if extractRev(doc.Rev) != 0 {
		return "", ErrConflict
	}

	newRev := nextRev(doc.Rev)
	doc.Rev = newRev
	newRevN := extractRev(newRev)

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	res, err := tx.Exec(
		"INSERT INTO changes (id, rev_n, doc, deleted) VALUES (?, ?, ?, ?)",
		doc.ID, newRevN, raw, doc.Deleted)
	if err != nil {
		return "", fmt.Errorf("append change: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("read change seq: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO docs (id, path, rev_n, doc, deleted) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET path=excluded.path, rev_n=excluded.rev_n, doc=excluded.doc, deleted=excluded.deleted`,
		doc.ID, doc.Path, newRevN, raw, doc.Deleted)
	if err != nil {
		return "", fmt.Errorf("upsert doc: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM changes WHERE id = ? AND seq NOT IN (
			SELECT seq FROM changes WHERE id = ? ORDER BY seq DESC LIMIT ?)`,
		doc.ID, doc.ID, historyRetention); err != nil {
		return "", fmt.Errorf("trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit put: %w", err)
	}

	s.prevCache.Add(fmt.Sprintf("%s@%d", doc.ID, newRevN), doc.Clone())
	s.seq.Store(uint64(seq))
	s.broadcast()

	return newRev, nil
}

func (s *SQLiteStore) NextChange(since uint64, byPath bool) (*ChangeEntry, bool, error) {
	query := "SELECT seq, id, rev_n, doc, deleted FROM changes WHERE seq > ?"
	args := []any{since}
	if byPath {
		query += " AND substr(id, 1, ?) <> ?"
		args = append(args, len(internalIDPrefix), internalIDPrefix)
	}
	query += " ORDER BY seq ASC LIMIT 1"

	var row struct {
		Seq     uint64 `db:"seq"`
		ID      string `db:"id"`
		RevN    int    `db:"rev_n"`
		Doc     []byte `db:"doc"`
		Deleted bool   `db:"deleted"`
	}
	err := s.db.Get(&row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("next change: %w", err)
	}

	doc, err := decodeDoc(row.Doc)
	if err != nil {
		return nil, false, err
	}
	return &ChangeEntry{Seq: row.Seq, ID: row.ID, Doc: doc, Deleted: row.Deleted}, true, nil
}

func (s *SQLiteStore) WaitForChange(ctx context.Context, since uint64) error {
	for {
		if s.seq.Load() > since {
			return nil
		}
		s.notifyMu.Lock()
		ch := s.notifyCh
		s.notifyMu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (s *SQLiteStore) broadcast() {
	s.notifyMu.Lock()
	close(s.notifyCh)
	s.notifyCh = make(chan struct{})
	s.notifyMu.Unlock()
}

// Lock acquires the in-process mutex plus a gofrs/flock advisory lock on
// a sidecar file, so the exclusivity guarantee holds both across
// goroutines in this process and across any other process touching the
// same store file.
func (s *SQLiteStore) Lock(ctx context.Context) (func(), error) {
	acquired := make(chan struct{})
	go func() {
		s.writeMu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// The mutex will still be acquired eventually by the goroutine
		// above; release it immediately so it doesn't leak held forever.
		go func() { <-acquired; s.writeMu.Unlock() }()
		return nil, fmt.Errorf("acquire store lock: %w", ctx.Err())
	}

	locked, err := s.flock.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil {
		s.writeMu.Unlock()
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		s.writeMu.Unlock()
		return nil, fmt.Errorf("acquire store lock: %w", ctx.Err())
	}

	var released bool
	var mu sync.Mutex
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if released {
			return
		}
		released = true
		_ = s.flock.Unlock()
		s.writeMu.Unlock()
	}, nil
}

func (s *SQLiteStore) GetLocalSeq() (uint64, error) {
	var seq sql.NullInt64
	err := s.db.Get(&seq, "SELECT seq FROM cursor WHERE k = ?", localSeqKey)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get local seq: %w", err)
	}
	return uint64(seq.Int64), nil
}

func (s *SQLiteStore) SetLocalSeq(seq uint64) error {
	_, err := s.db.Exec(
		`INSERT INTO cursor (k, seq) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET seq=excluded.seq`,
		localSeqKey, seq)
	if err != nil {
		return fmt.Errorf("set local seq: %w", err)
	}
	return nil
}
