package syncengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Apply_NewLocalFile_OverwritesRemoteWithNilPrev(t *testing.T) {
	store := newMemStore()
	e := testEngine(t, store)

	var gotDoc, gotOld *Metadata
	var called bool
	e.remote.OverwriteFile = func(ctx context.Context, doc, old *Metadata) error {
		called = true
		gotDoc, gotOld = doc, old
		return nil
	}

	doc := &Metadata{ID: "new.txt", Path: "new.txt", DocType: DocTypeFile, MD5Sum: "abc"}
	rev, err := store.Put(doc)
	require.NoError(t, err)
	doc.Sides.Local = extractRev(rev)

	entry := &ChangeEntry{Seq: 1, ID: doc.ID, Doc: doc}
	require.NoError(t, e.apply(context.Background(), entry))

	assert.True(t, called)
	assert.Equal(t, "new.txt", gotDoc.ID)
	assert.Nil(t, gotOld)

	seq, err := store.GetLocalSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	final, err := store.Get("new.txt")
	require.NoError(t, err)
	assert.Equal(t, extractRev(final.Rev), final.Sides.Local)
	assert.Equal(t, extractRev(final.Rev), final.Sides.Remote)
}

func TestEngine_Apply_NewLocalFolder_AddsFolder(t *testing.T) {
	store := newMemStore()
	e := testEngine(t, store)

	var called bool
	e.remote.AddFolder = func(ctx context.Context, doc *Metadata) error {
		called = true
		return nil
	}

	doc := &Metadata{ID: "dir", Path: "dir", DocType: DocTypeFolder}
	rev, err := store.Put(doc)
	require.NoError(t, err)
	doc.Sides.Local = extractRev(rev)

	entry := &ChangeEntry{Seq: 1, ID: doc.ID, Doc: doc}
	require.NoError(t, e.apply(context.Background(), entry))
	assert.True(t, called)
}

func TestEngine_Apply_Ignored_AdvancesWithoutTouchingSides(t *testing.T) {
	store := newMemStore()
	e := testEngine(t, store)
	e.ignore = func(doc *Metadata) bool { return doc.Path == "skip.txt" }

	var called bool
	e.remote.AddFile = func(ctx context.Context, doc *Metadata) error {
		called = true
		return nil
	}

	doc := &Metadata{ID: "skip.txt", Path: "skip.txt", DocType: DocTypeFile}
	rev, err := store.Put(doc)
	require.NoError(t, err)
	doc.Sides.Local = extractRev(rev)

	entry := &ChangeEntry{Seq: 1, ID: doc.ID, Doc: doc}
	require.NoError(t, e.apply(context.Background(), entry))

	assert.False(t, called, "ignored docs must never reach a Side call")
	seq, err := store.GetLocalSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
}

func TestEngine_Apply_UpToDate_AdvancesWithoutTouchingSides(t *testing.T) {
	store := newMemStore()
	e := testEngine(t, store)

	var called bool
	e.remote.AddFile = func(ctx context.Context, doc *Metadata) error {
		called = true
		return nil
	}
	e.local.AddFile = func(ctx context.Context, doc *Metadata) error {
		called = true
		return nil
	}

	doc := &Metadata{ID: "a", Path: "a", DocType: DocTypeFile, Sides: Sides{Local: 1, Remote: 1}}
	rev, err := store.Put(doc)
	require.NoError(t, err)
	doc.Rev = rev

	entry := &ChangeEntry{Seq: 1, ID: doc.ID, Doc: doc}
	require.NoError(t, e.apply(context.Background(), entry))
	assert.False(t, called)
}

func TestEngine_Apply_RemoteTrash_UsesTrashWithParentCoalescing(t *testing.T) {
	store := newMemStore()
	e := testEngine(t, store)

	var trashed []string
	e.remote.Trash = func(ctx context.Context, doc *Metadata) error {
		trashed = append(trashed, doc.ID)
		return nil
	}

	doc := &Metadata{ID: "gone.txt", Path: "gone.txt", DocType: DocTypeFile, Trashed: true, Sides: Sides{Local: 2, Remote: 1}}
	rev, err := store.Put(doc)
	require.NoError(t, err)
	doc.Rev = rev

	entry := &ChangeEntry{Seq: 1, ID: doc.ID, Doc: doc}
	require.NoError(t, e.apply(context.Background(), entry))

	assert.Equal(t, []string{"gone.txt"}, trashed)
	seq, err := store.GetLocalSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
}

func TestEngine_Apply_SideActionFails_RoutesThroughErrorLadder(t *testing.T) {
	store := newMemStore()
	e := testEngine(t, store)

	doc := &Metadata{ID: "a", Path: "a", DocType: DocTypeFile, MD5Sum: "abc"}
	rev, err := store.Put(doc)
	require.NoError(t, err)
	doc.Sides.Local = extractRev(rev)

	var attempts int
	e.remote.OverwriteFile = func(ctx context.Context, doc, old *Metadata) error {
		attempts++
		return assert.AnError
	}

	entry := &ChangeEntry{Seq: 1, ID: doc.ID, Doc: doc}
	require.NoError(t, e.apply(context.Background(), entry), "budget exhaustion swallows the error and advances")

	assert.Equal(t, maxDocErrors, attempts, "should retry in place until the per-doc budget is exhausted")

	seq, err := store.GetLocalSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, maxDocErrors, got.Errors)
	assert.True(t, poisoned(got))
}

func TestEngine_Sync_DrainsMultipleChangesInOrder(t *testing.T) {
	store := newMemStore()
	e := testEngine(t, store)
	e.LiveWait = false

	var applied []string
	e.remote.OverwriteFile = func(ctx context.Context, doc, old *Metadata) error {
		applied = append(applied, doc.ID)
		return nil
	}
	e.remote.AddFolder = func(ctx context.Context, doc *Metadata) error {
		applied = append(applied, doc.ID)
		return nil
	}

	for _, id := range []string{"a", "b"} {
		doc := &Metadata{ID: id, Path: id, DocType: DocTypeFile, MD5Sum: "x"}
		rev, err := store.Put(doc)
		require.NoError(t, err)
		doc.Sides.Local = extractRev(rev)
		_, err = store.Put(doc)
		require.NoError(t, err)
	}

	require.NoError(t, e.sync(context.Background()))
	assert.Equal(t, []string{"a", "b"}, applied)
}
