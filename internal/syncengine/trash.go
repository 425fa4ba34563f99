package syncengine

import (
	"context"
	"fmt"
	"path"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// rootSentinel is the dirname of any top-level id ("a" → ".").
const rootSentinel = "."

func parentID(id string) string {
	return path.Dir(id)
}

// trashWithParent implements spec §4.7: when the remote side is asked to
// trash a doc, trash the top-most trashed ancestor instead, so a deleted
// subtree lands in the remote trash as one coherent unit rather than as
// N independent trashings.
//
// It returns advance=false when the caller (apply) must NOT advance the
// cursor for this change — the parent's own feed entry will re-drive it.
func (e *Engine) trashWithParent(ctx context.Context, doc *Metadata) (advance bool, err error) {
	return e.trashWithParentVisiting(ctx, doc, mapset.NewThreadUnsafeSet[string]())
}

// trashWithParentVisiting carries the set of ids already walked up through
// in this call chain, so a corrupt or cyclical id→parent chain can never
// recurse forever (spec §4.7 describes the walk for well-formed trees only;
// this guard is defensive bookkeeping for malformed ones).
func (e *Engine) trashWithParentVisiting(ctx context.Context, doc *Metadata, visiting mapset.Set[string]) (advance bool, err error) {
	if visiting.Contains(doc.ID) {
		return false, fmt.Errorf("trash %s: cyclical parent chain detected", doc.ID)
	}
	visiting.Add(doc.ID)

	parentId := parentID(doc.ID)
	if parentId == rootSentinel {
		if err := e.remote.Trash(ctx, doc); err != nil {
			return false, fmt.Errorf("trash %s: %w", doc.ID, err)
		}
		return true, nil
	}

	parent, err := e.store.Get(parentId)
	if err != nil {
		if err == ErrNotFound {
			// No parent record at all: nothing to coalesce with.
			if terr := e.remote.Trash(ctx, doc); terr != nil {
				return false, fmt.Errorf("trash %s: %w", doc.ID, terr)
			}
			return true, nil
		}
		return false, fmt.Errorf("load parent %s: %w", parentId, err)
	}

	if !parent.Trashed {
		select {
		case <-time.After(e.TrashingDelay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
		parent, err = e.store.Get(parentId)
		if err != nil && err != ErrNotFound {
			return false, fmt.Errorf("reload parent %s: %w", parentId, err)
		}
	}

	if parent != nil && parent.Trashed && parent.Sides.Remote < extractRev(parent.Rev) {
		if _, err := e.trashWithParentVisiting(ctx, parent, visiting); err != nil {
			return false, err
		}
		select {
		case <-time.After(e.Heartbeat):
		case <-ctx.Done():
			return false, ctx.Err()
		}
		return false, nil
	}

	if err := e.remote.Trash(ctx, doc); err != nil {
		return false, fmt.Errorf("trash %s: %w", doc.ID, err)
	}
	return true, nil
}
