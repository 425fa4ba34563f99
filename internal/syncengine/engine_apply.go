package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// apply implements spec §4.4 steps 1-5 for a single change-feed entry.
func (e *Engine) apply(ctx context.Context, entry *ChangeEntry) error {
	doc := entry.Doc

	if e.ignore != nil && e.ignore(doc) {
		return e.advance(entry.Seq)
	}

	side, rev, upToDate := selectSide(doc)
	if upToDate {
		return e.advance(entry.Seq)
	}

	if side == SideRemote && doc.Trashed {
		advance, err := e.trashWithParent(ctx, doc)
		if err != nil {
			return e.recoverOrPropagate(ctx, entry, err)
		}
		if !advance {
			// The parent's own feed entry will re-drive this change; do
			// not move the cursor past it yet.
			return nil
		}
		return e.finishApply(doc, entry.Seq, side)
	}

	return e.applyDoc(ctx, entry, doc, side, rev)
}

func (e *Engine) applyDoc(ctx context.Context, entry *ChangeEntry, doc *Metadata, side SideName, rev int) error {
	decision, err := classify(doc, func() (*Metadata, bool, error) {
		prev, err := e.store.GetPreviousRev(doc.ID, rev)
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return prev, true, nil
	})
	if err != nil {
		var classErr *ClassificationError
		if errors.As(err, &classErr) {
			return &FatalError{Code: CodeUnclassifiable, Message: err.Error()}
		}
		return err
	}

	target := e.local
	if side == SideRemote {
		target = e.remote
	}

	if applyErr := e.executeAction(ctx, target, doc, decision); applyErr != nil {
		return e.recoverOrPropagate(ctx, entry, applyErr)
	}

	return e.finishApply(doc, entry.Seq, side)
}

// executeAction maps a classifier Decision onto exactly one Side call
// (Design Notes §9): the decision table stays pure, this is the only place
// that performs I/O on its behalf.
func (e *Engine) executeAction(ctx context.Context, target *Side, doc *Metadata, d Decision) error {
	switch d.Kind {
	case ActionNoOp:
		return nil

	case ActionSkipIncompatible:
		slog.Warn("syncengine: skipping incompatible record", "id", doc.ID, "path", doc.Path)
		if d.TrashOldLocal && doc.MoveFrom != nil {
			if err := callTrash(ctx, target, doc.MoveFrom); err != nil {
				slog.Warn("syncengine: failed trashing stale copy of renamed-incompatible record", "id", doc.MoveFrom.ID, "error", err)
			}
		}
		return nil

	case ActionAddFile:
		return callAddFile(ctx, target, doc)
	case ActionAddFolder:
		return callAddFolder(ctx, target, doc)
	case ActionOverwriteFile:
		return callOverwriteFile(ctx, target, doc, d.Prev)
	case ActionUpdateFileMetadata:
		return callUpdateFileMetadata(ctx, target, doc, d.Prev)
	case ActionUpdateFolder:
		return callUpdateFolder(ctx, target, doc, d.Prev)
	case ActionMoveFile:
		return callMoveFile(ctx, target, doc, d.From)
	case ActionMoveFolder:
		return callMoveFolder(ctx, target, doc, d.From)
	case ActionTrash:
		return callTrash(ctx, target, doc)
	case ActionDeleteFolder:
		return callDeleteFolder(ctx, target, doc)
	case ActionAssignRev:
		return callAssignNewRev(ctx, target, doc)
	default:
		return fmt.Errorf("syncengine: unhandled action %s for %s", d.Kind, doc.ID)
	}
}

func callAddFile(ctx context.Context, s *Side, doc *Metadata) error {
	if s.AddFile == nil {
		return fmt.Errorf("side %s: AddFile not implemented", s.Name)
	}
	return s.AddFile(ctx, doc)
}

func callAddFolder(ctx context.Context, s *Side, doc *Metadata) error {
	if s.AddFolder == nil {
		return fmt.Errorf("side %s: AddFolder not implemented", s.Name)
	}
	return s.AddFolder(ctx, doc)
}

func callOverwriteFile(ctx context.Context, s *Side, doc, old *Metadata) error {
	if s.OverwriteFile == nil {
		return fmt.Errorf("side %s: OverwriteFile not implemented", s.Name)
	}
	return s.OverwriteFile(ctx, doc, old)
}

func callUpdateFileMetadata(ctx context.Context, s *Side, doc, old *Metadata) error {
	if s.UpdateFileMetadata == nil {
		return fmt.Errorf("side %s: UpdateFileMetadata not implemented", s.Name)
	}
	return s.UpdateFileMetadata(ctx, doc, old)
}

func callUpdateFolder(ctx context.Context, s *Side, doc, old *Metadata) error {
	if s.UpdateFolder == nil {
		return fmt.Errorf("side %s: UpdateFolder not implemented", s.Name)
	}
	return s.UpdateFolder(ctx, doc, old)
}

func callMoveFile(ctx context.Context, s *Side, doc, from *Metadata) error {
	if s.MoveFile == nil {
		return fmt.Errorf("side %s: MoveFile not implemented", s.Name)
	}
	return s.MoveFile(ctx, doc, from)
}

func callMoveFolder(ctx context.Context, s *Side, doc, from *Metadata) error {
	if s.MoveFolder == nil {
		return fmt.Errorf("side %s: MoveFolder not implemented", s.Name)
	}
	return s.MoveFolder(ctx, doc, from)
}

func callTrash(ctx context.Context, s *Side, doc *Metadata) error {
	if s.Trash == nil {
		return fmt.Errorf("side %s: Trash not implemented", s.Name)
	}
	return s.Trash(ctx, doc)
}

func callDeleteFolder(ctx context.Context, s *Side, doc *Metadata) error {
	if s.DeleteFolder == nil {
		return fmt.Errorf("side %s: DeleteFolder not implemented", s.Name)
	}
	return s.DeleteFolder(ctx, doc)
}

func callAssignNewRev(ctx context.Context, s *Side, doc *Metadata) error {
	if s.AssignNewRev == nil {
		return fmt.Errorf("side %s: AssignNewRev not implemented", s.Name)
	}
	return s.AssignNewRev(ctx, doc)
}

// recoverOrPropagate routes an apply failure through the error-classification
// ladder (spec §4.5): a retry re-attempts the same change once the remote is
// reachable again, a skip advances the cursor past it, and a fatal error
// propagates out of Start.
func (e *Engine) recoverOrPropagate(ctx context.Context, entry *ChangeEntry, applyErr error) error {
	outcome, err := e.handleApplyError(ctx, entry, applyErr)
	if err != nil {
		return err
	}
	switch outcome {
	case OutcomeRetry:
		return e.apply(ctx, entry)
	default:
		return e.advance(entry.Seq)
	}
}

func (e *Engine) advance(seq uint64) error {
	if err := e.store.SetLocalSeq(seq); err != nil {
		return fmt.Errorf("advance cursor to %d: %w", seq, err)
	}
	return nil
}

// finishApply advances the cursor past a successfully applied change and
// bumps both side revision counters (spec §4.4 step 5).
func (e *Engine) finishApply(doc *Metadata, seq uint64, side SideName) error {
	if err := e.advance(seq); err != nil {
		return err
	}
	if doc.Deleted {
		return nil
	}
	if err := e.updateRevs(doc, side); err != nil {
		slog.Warn("syncengine: updateRevs failed, treating as race", "id", doc.ID, "error", err)
	}
	return nil
}

// updateRevs implements spec §4.4 step 5's bookkeeping: both sides'
// counters are set to extractRev(doc.Rev)+1, clearing the error count. A put
// conflict means a newer revision raced us in; we re-fetch and reapply only
// the caller's side bump, and any further failure is logged and swallowed as
// a benign race rather than surfaced.
func (e *Engine) updateRevs(doc *Metadata, side SideName) error {
	next := extractRev(doc.Rev) + 1

	updated := doc.Clone()
	updated.Sides.Local = next
	updated.Sides.Remote = next
	updated.Errors = 0
	updated.MoveFrom = nil
	updated.MoveTo = ""
	updated.ChildMove = false

	if _, err := e.store.Put(updated); err == nil {
		return nil
	} else if !errors.Is(err, ErrConflict) {
		return err
	}

	fresh, err := e.store.Get(doc.ID)
	if err != nil {
		return fmt.Errorf("re-fetch %s after conflicting updateRevs: %w", doc.ID, err)
	}

	retry := fresh.Clone()
	bump := extractRev(retry.Rev) + 1
	switch side {
	case SideLocal:
		retry.Sides.Local = bump
	case SideRemote:
		retry.Sides.Remote = bump
	}

	_, err = e.store.Put(retry)
	return err
}
