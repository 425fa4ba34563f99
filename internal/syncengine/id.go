package syncengine

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// IDCase selects how a local path is mapped to a document id. Id equality
// is the canonical "same entity" test locally; see spec §3.
type IDCase int

const (
	// CaseSensitive is the identity mapping: path == id, for filesystems
	// such as ext4 or APFS (case-sensitive mode).
	CaseSensitive IDCase = iota
	// CaseInsensitiveNFD is HFS+'s scheme: case-preserving, case-
	// insensitive, and Unicode-NFD on disk. The id is the NFD-normalized,
	// uppercased path, so two paths that differ only by case or by
	// composed/decomposed accents collide to the same id.
	CaseInsensitiveNFD
	// CaseInsensitiveUpper is NTFS's scheme: case-preserving, case-
	// insensitive, no normalization. The id is the uppercased path.
	CaseInsensitiveUpper
)

// IdentifierFor derives the document id for a path under the given case
// semantics. Id derivation is idempotent: IdentifierFor(c, IdentifierFor(c, p)) ==
// IdentifierFor(c, p), since both NFD-normalization and upper-casing are
// themselves idempotent transforms.
func IdentifierFor(c IDCase, path string) string {
	switch c {
	case CaseInsensitiveNFD:
		return strings.ToUpper(norm.NFD.String(path))
	case CaseInsensitiveUpper:
		return strings.ToUpper(path)
	default:
		return path
	}
}
