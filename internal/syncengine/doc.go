// Package syncengine implements the bidirectional file-synchronization
// engine: the metadata store, the reconciliation loop, the change
// classifier, and the failure model that together keep a local directory
// tree and a remote object store ("the cozy") converging on the same
// state.
package syncengine

import "time"

// DocType distinguishes a file from a folder. No other values are valid;
// classify treats anything else as a fatal classification error.
type DocType string

const (
	DocTypeFile   DocType = "file"
	DocTypeFolder DocType = "folder"
)

// RemoteRef is the remote counterpart's identity, as known to a local
// record (or vice versa).
type RemoteRef struct {
	ID  string `json:"id,omitempty"`
	Rev string `json:"rev,omitempty"`
}

// Sides holds the per-side revision counters described in spec §3. Zero
// means "this side has not materialized any revision yet".
type Sides struct {
	Local  int `json:"local"`
	Remote int `json:"remote"`
}

// IncompatibilityType enumerates the platform restrictions
// detectPlatformIncompatibilities can surface.
type IncompatibilityType string

const (
	IncompatibleReservedName IncompatibilityType = "reserved_name"
	IncompatibleCharacter    IncompatibilityType = "forbidden_character"
	IncompatibleTrailingDot  IncompatibilityType = "trailing_dot_or_space"
	IncompatiblePathLength   IncompatibilityType = "path_too_long"
)

// Incompatibility is one reason a record cannot be materialized on the
// local side as-is.
type Incompatibility struct {
	Type    IncompatibilityType `json:"type"`
	Path    string              `json:"path"`
	DocType DocType             `json:"docType"`
}

// Metadata is the single canonical unit the engine operates on: the
// shape of any file or folder known to the system, as described in spec
// §3. It is stored verbatim (as JSON) in the metadata store.
type Metadata struct {
	ID      string  `json:"id"`
	Rev     string  `json:"rev"`
	Path    string  `json:"path"`
	DocType DocType `json:"docType"`
	Deleted bool    `json:"deleted,omitempty"`

	MD5Sum     string `json:"md5sum,omitempty"`
	Size       int64  `json:"size,omitempty"`
	Executable bool   `json:"executable,omitempty"`
	Mime       string `json:"mime,omitempty"`
	Class      string `json:"class,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Ino       uint64    `json:"ino,omitempty"`
	Tags      []string  `json:"tags,omitempty"`

	Remote RemoteRef `json:"remote,omitempty"`
	Sides  Sides      `json:"sides"`
	Errors int        `json:"errors,omitempty"`

	// MoveTo is set on the source record of an in-flight move: the id of
	// the destination. MoveFrom is set on the destination record: a
	// value-copy (never a live reference) of the prior record, so the
	// move graph stays a forest (Design Notes §9).
	MoveTo    string    `json:"moveTo,omitempty"`
	MoveFrom  *Metadata `json:"moveFrom,omitempty"`
	ChildMove bool      `json:"childMove,omitempty"`

	Trashed           bool              `json:"trashed,omitempty"`
	Incompatibilities []Incompatibility `json:"incompatibilities,omitempty"`
}

// Clone returns a deep-enough copy for safe mutation by callers that hold
// a record returned from the store (slices and the MoveFrom pointer are
// copied, not aliased).
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.Tags != nil {
		c.Tags = append([]string(nil), m.Tags...)
	}
	if m.Incompatibilities != nil {
		c.Incompatibilities = append([]Incompatibility(nil), m.Incompatibilities...)
	}
	if m.MoveFrom != nil {
		moveFrom := *m.MoveFrom
		moveFrom.MoveFrom = nil // the forest invariant: never more than one level deep
		c.MoveFrom = &moveFrom
	}
	return &c
}

// IsFile reports whether the document is a regular file.
func (m *Metadata) IsFile() bool { return m.DocType == DocTypeFile }

// IsFolder reports whether the document is a folder.
func (m *Metadata) IsFolder() bool { return m.DocType == DocTypeFolder }
