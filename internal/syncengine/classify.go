package syncengine

import "fmt"

// ActionKind is the sum type of actions the classifier can produce, per
// spec §4.4 and Design Notes §9 ("tagged variants"). A small executor
// (engine_apply.go's executeAction) maps each kind to exactly one Side call, so
// the decision table itself stays pure and is directly unit-testable.
type ActionKind int

const (
	ActionNoOp ActionKind = iota
	ActionSkipIncompatible
	ActionAddFile
	ActionAddFolder
	ActionOverwriteFile
	ActionUpdateFileMetadata
	ActionUpdateFolder
	ActionMoveFile
	ActionMoveFolder
	ActionTrash
	ActionDeleteFolder
	ActionAssignRev
)

func (k ActionKind) String() string {
	switch k {
	case ActionNoOp:
		return "NoOp"
	case ActionSkipIncompatible:
		return "SkipIncompatible"
	case ActionAddFile:
		return "AddFile"
	case ActionAddFolder:
		return "AddFolder"
	case ActionOverwriteFile:
		return "OverwriteFile"
	case ActionUpdateFileMetadata:
		return "UpdateFileMetadata"
	case ActionUpdateFolder:
		return "UpdateFolder"
	case ActionMoveFile:
		return "MoveFile"
	case ActionMoveFolder:
		return "MoveFolder"
	case ActionTrash:
		return "Trash"
	case ActionDeleteFolder:
		return "DeleteFolder"
	case ActionAssignRev:
		return "AssignRev"
	default:
		return "Unknown"
	}
}

// Decision is the classifier's output: the action to take, plus whatever
// prior record it needs (the move source, or the previous revision).
type Decision struct {
	Kind Action
	Prev *Metadata
	From *Metadata

	// TrashOldLocal is set alongside ActionSkipIncompatible when the
	// record was compatible before an in-flight rename: the stale local
	// copy under the old path must also be trashed (spec §4.4).
	TrashOldLocal bool
}

// Action is an alias kept for readability at call sites; ActionKind and
// Action are the same type.
type Action = ActionKind

// ClassificationError is a fatal error: doc.DocType is neither file nor
// folder (spec §4.4 row 2).
type ClassificationError struct {
	ID      string
	DocType DocType
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("syncengine: unclassifiable docType %q for %s", e.DocType, e.ID)
}

// PrevFetcher lazily fetches the previous revision of a document; it is
// only invoked for the one decision-table row that needs it (spec §4.4's
// final "else" branch), keeping classify otherwise I/O-free.
type PrevFetcher func() (doc *Metadata, found bool, err error)

// classify implements the decision table of spec §4.4 step 4
// (applyDoc's "first match wins" table). It reads doc.Incompatibilities
// as already computed; it does not detect incompatibilities itself.
func classify(doc *Metadata, fetchPrev PrevFetcher) (Decision, error) {
	// incompatibilities present on local side, no active move
	if len(doc.Incompatibilities) > 0 && doc.MoveTo == "" {
		d := Decision{Kind: ActionSkipIncompatible}
		if doc.MoveFrom != nil && len(doc.MoveFrom.Incompatibilities) == 0 {
			d.TrashOldLocal = true
		}
		return d, nil
	}

	if doc.DocType != DocTypeFile && doc.DocType != DocTypeFolder {
		return Decision{}, &ClassificationError{ID: doc.ID, DocType: doc.DocType}
	}

	if doc.Deleted && extractRev(doc.Rev) == 0 {
		return Decision{Kind: ActionNoOp}, nil
	}

	if doc.MoveTo != "" {
		return Decision{Kind: ActionNoOp}, nil
	}

	if doc.MoveFrom != nil {
		switch {
		case len(doc.MoveFrom.Incompatibilities) > 0:
			if doc.IsFolder() {
				return Decision{Kind: ActionAddFolder}, nil
			}
			return Decision{Kind: ActionOverwriteFile, Prev: nil}, nil
		case doc.ChildMove:
			return Decision{Kind: ActionAssignRev}, nil
		default:
			from := doc.MoveFrom
			if doc.IsFolder() {
				return Decision{Kind: ActionMoveFolder, From: from}, nil
			}
			return Decision{Kind: ActionMoveFile, From: from}, nil
		}
	}

	if doc.Deleted {
		if doc.IsFolder() {
			return Decision{Kind: ActionDeleteFolder}, nil
		}
		return Decision{Kind: ActionTrash}, nil
	}

	if extractRev(doc.Rev) == 0 {
		if doc.IsFolder() {
			return Decision{Kind: ActionAddFolder}, nil
		}
		return Decision{Kind: ActionAddFile}, nil
	}

	prev, found, err := fetchPrev()
	if err != nil {
		return Decision{}, fmt.Errorf("fetch previous revision of %s: %w", doc.ID, err)
	}
	if !found {
		if doc.IsFolder() {
			return Decision{Kind: ActionAddFolder}, nil
		}
		return Decision{Kind: ActionOverwriteFile, Prev: nil}, nil
	}

	if doc.IsFolder() {
		return Decision{Kind: ActionUpdateFolder, Prev: prev}, nil
	}
	if prev.MD5Sum == doc.MD5Sum {
		return Decision{Kind: ActionUpdateFileMetadata, Prev: prev}, nil
	}
	return Decision{Kind: ActionOverwriteFile, Prev: prev}, nil
}

// selectSide implements spec §4.4 step 2: picks the applying side and
// its rev counter from the doc's per-side revision counters.
func selectSide(doc *Metadata) (side SideName, rev int, upToDate bool) {
	switch {
	case doc.Sides.Local > doc.Sides.Remote:
		return SideRemote, doc.Sides.Remote, false
	case doc.Sides.Remote > doc.Sides.Local:
		return SideLocal, doc.Sides.Local, false
	default:
		return "", 0, true
	}
}
