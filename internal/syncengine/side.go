package syncengine

import "context"

// SideName identifies which endpoint a Side represents. The classifier
// and the engine address sides generically by name; nothing downstream
// ever type-switches on a concrete implementation (Design Notes §9).
type SideName string

const (
	SideLocal  SideName = "local"
	SideRemote SideName = "remote"
)

// Side is the uniform capability surface both the filesystem and the
// remote object store implement, per spec §4.2. It is an explicit record
// of functions rather than an interface with named methods, so tests can
// substitute a recording stub by filling in only the fields they need —
// no fake type, no unimplemented-method panics.
type Side struct {
	Name SideName

	AddFile   func(ctx context.Context, doc *Metadata) error
	AddFolder func(ctx context.Context, doc *Metadata) error

	// OverwriteFile applies when binary content differs; old may be nil
	// if the prior revision is unknown (retention elapsed).
	OverwriteFile func(ctx context.Context, doc, old *Metadata) error

	// UpdateFileMetadata applies when only metadata changed (md5sum is
	// unchanged between doc and old).
	UpdateFileMetadata func(ctx context.Context, doc, old *Metadata) error
	UpdateFolder       func(ctx context.Context, doc, old *Metadata) error

	MoveFile   func(ctx context.Context, doc, from *Metadata) error
	MoveFolder func(ctx context.Context, doc, from *Metadata) error

	// Trash soft-deletes into a recoverable trash area.
	Trash func(ctx context.Context, doc *Metadata) error
	// DeleteFolder hard-deletes an already-empty or already-trashed
	// folder.
	DeleteFolder func(ctx context.Context, doc *Metadata) error

	// AssignNewRev is bookkeeping only: record that this side already
	// saw the change. No I/O.
	AssignNewRev func(ctx context.Context, doc *Metadata) error

	// DiskUsage probes the side's capacity. The error handler calls the
	// remote side's DiskUsage to classify failures and in its offline wait
	// loop (spec §4.5); the status command prints both sides' figures.
	// Nothing calls it before a write.
	DiskUsage func(ctx context.Context) (usedBytes, totalBytes int64, err error)

	opposite *Side
}

// SetOpposite records the counterpart side as explicit configuration, not
// hidden mutable module state (Design Notes §9). The engine does not read
// it: the trash-with-parent coalescer (spec §4.7) calls the engine's own
// remote side directly.
func (s *Side) SetOpposite(other *Side) {
	s.opposite = other
}

// Opposite returns the counterpart side, or nil if never set.
func (s *Side) Opposite() *Side {
	return s.opposite
}
