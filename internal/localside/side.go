// Package localside provides the concrete local filesystem Side: plain
// os/io file operations grounded on sync3's handleLocalWrites/
// handleLocalDeletes, generalized from "flat keyed object copy" into the
// full file/folder/move/trash capability set spec §4.2 requires.
package localside

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cozysync/engine/internal/syncengine"
)

// ContentFetcher is the one thing the local side needs from its
// counterpart: the bytes of a remote revision, to materialize AddFile/
// OverwriteFile. Satisfied structurally by *remoteside.RemoteSide.
type ContentFetcher interface {
	FetchFile(ctx context.Context, doc *syncengine.Metadata) (io.ReadCloser, error)
}

// noSpaceError marks ENOSPC-equivalent local write failures so errors.go's
// isNoSpace can recognize them without string matching.
type noSpaceError struct{ err error }

func (e *noSpaceError) Error() string { return e.err.Error() }
func (e *noSpaceError) Unwrap() error { return e.err }
func (e *noSpaceError) NoSpace() bool { return true }

func wrapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ENOSPC) {
		return &noSpaceError{err: err}
	}
	return err
}

// LocalSide is the filesystem half of a sync pair.
type LocalSide struct {
	root     string
	idCase   syncengine.IDCase
	platform syncengine.Platform
	remote   ContentFetcher
}

// New constructs a LocalSide rooted at root. SetRemote must be called
// before AddFile/OverwriteFile are exercised.
func New(root string, idCase syncengine.IDCase, platform syncengine.Platform) *LocalSide {
	return &LocalSide{root: root, idCase: idCase, platform: platform}
}

// SetRemote wires the counterpart content source, mirroring
// Side.SetOpposite's "configured once at construction" idiom.
func (l *LocalSide) SetRemote(remote ContentFetcher) { l.remote = remote }

// Side returns the capability record the engine drives.
func (l *LocalSide) Side() *syncengine.Side {
	return &syncengine.Side{
		Name:               syncengine.SideLocal,
		AddFile:            l.addFile,
		AddFolder:          l.addFolder,
		OverwriteFile:      l.overwriteFile,
		UpdateFileMetadata: l.updateFileMetadata,
		UpdateFolder:       l.updateFolder,
		MoveFile:           l.moveFile,
		MoveFolder:         l.moveFolder,
		Trash:              l.trash,
		DeleteFolder:       l.deleteFolder,
		AssignNewRev:       l.assignNewRev,
		DiskUsage:          l.diskUsage,
	}
}

// OpenFile structurally satisfies remoteside.ContentSource: it lets the
// remote side read local bytes for upload.
func (l *LocalSide) OpenFile(_ context.Context, doc *syncengine.Metadata) (io.ReadCloser, int64, error) {
	f, err := os.Open(l.absPath(doc.Path))
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func (l *LocalSide) absPath(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(p))
}

func (l *LocalSide) trashPath(p string) string {
	return filepath.Join(l.root, ".cozy-trash", filepath.FromSlash(p))
}

func (l *LocalSide) addFile(ctx context.Context, doc *syncengine.Metadata) error {
	if l.remote == nil {
		return fmt.Errorf("localside: no remote content source configured")
	}
	rc, err := l.remote.FetchFile(ctx, doc)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", doc.Path, err)
	}
	defer rc.Close()
	return l.writeAtomic(doc, rc)
}

func (l *LocalSide) overwriteFile(ctx context.Context, doc, _ *syncengine.Metadata) error {
	return l.addFile(ctx, doc)
}

func (l *LocalSide) writeAtomic(doc *syncengine.Metadata, r io.Reader) error {
	dest := l.absPath(doc.Path)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return wrapWriteErr(fmt.Errorf("create parent dir for %s: %w", doc.Path, err))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".cozysync-*")
	if err != nil {
		return wrapWriteErr(fmt.Errorf("create temp file for %s: %w", doc.Path, err))
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return wrapWriteErr(fmt.Errorf("write %s: %w", doc.Path, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return wrapWriteErr(fmt.Errorf("close %s: %w", doc.Path, err))
	}

	mode := os.FileMode(0o644)
	if doc.Executable {
		mode = 0o755
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", doc.Path, err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return wrapWriteErr(fmt.Errorf("rename into place %s: %w", doc.Path, err))
	}

	if !doc.UpdatedAt.IsZero() {
		_ = os.Chtimes(dest, doc.UpdatedAt, doc.UpdatedAt)
	}
	return nil
}

func (l *LocalSide) updateFileMetadata(_ context.Context, doc, _ *syncengine.Metadata) error {
	dest := l.absPath(doc.Path)
	mode := os.FileMode(0o644)
	if doc.Executable {
		mode = 0o755
	}
	if err := os.Chmod(dest, mode); err != nil {
		return err
	}
	if !doc.UpdatedAt.IsZero() {
		_ = os.Chtimes(dest, doc.UpdatedAt, doc.UpdatedAt)
	}
	return nil
}

func (l *LocalSide) addFolder(_ context.Context, doc *syncengine.Metadata) error {
	if err := os.MkdirAll(l.absPath(doc.Path), 0o755); err != nil {
		return wrapWriteErr(fmt.Errorf("create folder %s: %w", doc.Path, err))
	}
	return nil
}

func (l *LocalSide) updateFolder(ctx context.Context, doc, old *syncengine.Metadata) error {
	return l.addFolder(ctx, doc)
}

func (l *LocalSide) moveFile(_ context.Context, doc, from *syncengine.Metadata) error {
	return l.move(doc, from)
}

func (l *LocalSide) moveFolder(_ context.Context, doc, from *syncengine.Metadata) error {
	return l.move(doc, from)
}

func (l *LocalSide) move(doc, from *syncengine.Metadata) error {
	src := l.absPath(from.Path)
	dest := l.absPath(doc.Path)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return wrapWriteErr(fmt.Errorf("create parent dir for %s: %w", doc.Path, err))
	}
	if err := os.Rename(src, dest); err != nil {
		return wrapWriteErr(fmt.Errorf("move %s -> %s: %w", from.Path, doc.Path, err))
	}
	return nil
}

// trash moves the record into a .cozy-trash/ mirror of its original path,
// rather than deleting outright, so a local mistake stays recoverable.
func (l *LocalSide) trash(_ context.Context, doc *syncengine.Metadata) error {
	src := l.absPath(doc.Path)
	dest := l.trashPath(doc.Path)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create trash dir for %s: %w", doc.Path, err)
	}
	if err := os.Rename(src, dest); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("trash %s: %w", doc.Path, err)
	}
	slog.Info("localside: trashed", "path", doc.Path)
	return nil
}

func (l *LocalSide) deleteFolder(ctx context.Context, doc *syncengine.Metadata) error {
	err := os.Remove(l.absPath(doc.Path))
	if err != nil && !os.IsNotExist(err) {
		if pe, ok := err.(*os.LinkError); ok {
			return fmt.Errorf("delete folder %s: %w", doc.Path, pe)
		}
		return fmt.Errorf("delete folder %s: %w", doc.Path, err)
	}
	return nil
}

// assignNewRev is pure bookkeeping: the engine has already recorded that
// this side saw the change, no filesystem action is needed.
func (l *LocalSide) assignNewRev(_ context.Context, _ *syncengine.Metadata) error {
	return nil
}

func (l *LocalSide) diskUsage(_ context.Context) (usedBytes, totalBytes int64, err error) {
	return diskUsage(l.root)
}
