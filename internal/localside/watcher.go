package localside

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/rjeczalik/notify"

	"github.com/cozysync/engine/internal/syncengine"
)

// Watcher recursively watches root and upserts an observed Metadata into
// the store for every filesystem event, letting the engine's classifier
// decide what to do with it. Grounded on sync3/file_watcher.go's
// notify.Watch wiring, generalized from "emit a raw notify.EventInfo" to
// "compute and commit a Metadata record" since this engine's Store (unlike
// the teacher's flat journal) is the single source of truth the
// reconciliation loop reads from.
type Watcher struct {
	root     string
	store    syncengine.Store
	idCase   syncengine.IDCase
	platform syncengine.Platform
	ignore   func(path string) bool

	events chan notify.EventInfo
	done   chan struct{}
}

// NewWatcher constructs a local filesystem watcher rooted at root.
func NewWatcher(root string, store syncengine.Store, idCase syncengine.IDCase, platform syncengine.Platform, ignore func(path string) bool) *Watcher {
	return &Watcher{
		root:     root,
		store:    store,
		idCase:   idCase,
		platform: platform,
		ignore:   ignore,
		events:   make(chan notify.EventInfo, 64),
		done:     make(chan struct{}),
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("localside: watcher start", "dir", w.root)

	recursivePath := filepath.Join(w.root, "...")
	if err := notify.Watch(recursivePath, w.events, notify.Create, notify.Write, notify.Remove, notify.Rename); err != nil {
		return err
	}
	defer notify.Stop(w.events)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			if err := w.handle(ctx, evt); err != nil {
				slog.Warn("localside: watcher failed to record event", "path", evt.Path(), "error", err)
			}
		}
	}
}

func (w *Watcher) Stop() error {
	close(w.done)
	slog.Info("localside: watcher stop")
	return nil
}

func (w *Watcher) handle(_ context.Context, evt notify.EventInfo) error {
	rel, err := filepath.Rel(w.root, evt.Path())
	if err != nil {
		return err
	}
	rel = filepath.ToSlash(rel)
	if w.ignore != nil && w.ignore(rel) {
		return nil
	}

	id := syncengine.IdentifierFor(w.idCase, rel)

	existing, err := w.store.Get(id)
	if err != nil && !errors.Is(err, syncengine.ErrNotFound) {
		return err
	}

	info, statErr := os.Lstat(evt.Path())
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return w.recordDelete(id, rel, existing)
		}
		return statErr
	}

	if info.IsDir() {
		return w.recordFolder(id, rel, info, existing)
	}
	return w.recordFile(id, rel, info, existing)
}

func (w *Watcher) recordDelete(id, rel string, existing *syncengine.Metadata) error {
	if existing == nil {
		return nil
	}
	doc := existing.Clone()
	doc.Deleted = true
	doc.Sides.Local = syncengine.ExtractRev(doc.Rev) + 1
	_, err := w.store.Put(doc)
	return err
}

func (w *Watcher) recordFolder(id, rel string, info os.FileInfo, existing *syncengine.Metadata) error {
	doc := baseDoc(id, rel, existing)
	doc.DocType = syncengine.DocTypeFolder
	doc.UpdatedAt = info.ModTime()
	doc.Sides.Local = syncengine.ExtractRev(doc.Rev) + 1
	_, err := w.store.Put(doc)
	return err
}

func (w *Watcher) recordFile(id, rel string, info os.FileInfo, existing *syncengine.Metadata) error {
	sum, err := md5sum(filepath.Join(w.root, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}

	doc := baseDoc(id, rel, existing)
	doc.DocType = syncengine.DocTypeFile
	doc.MD5Sum = sum
	doc.Size = info.Size()
	doc.Executable = info.Mode()&0o111 != 0
	doc.UpdatedAt = info.ModTime()
	doc.Mime = mime.TypeByExtension(filepath.Ext(rel))

	if existing != nil && existing.MD5Sum == sum && existing.Size == doc.Size {
		return nil
	}

	doc.Sides.Local = syncengine.ExtractRev(doc.Rev) + 1
	_, err = w.store.Put(doc)
	return err
}

func baseDoc(id, rel string, existing *syncengine.Metadata) *syncengine.Metadata {
	if existing != nil {
		return existing.Clone()
	}
	return &syncengine.Metadata{ID: id, Path: rel}
}

func md5sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
