package syncengine

import (
	"encoding/base64"
	"path"
	"runtime"
	"strings"
)

// Platform selects which set of filename/path restrictions
// detectPlatformIncompatibilities enforces.
type Platform int

const (
	PlatformPOSIX Platform = iota
	PlatformWindows
	PlatformDarwin
)

const (
	windowsMaxPath = 260
	posixMaxPath   = 1024
)

var windowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

const windowsForbiddenChars = `<>:"/\|?*`

// PlatformFor reports the running process's platform, for callers (the
// daemon's wiring code) that need a Platform value without hand-rolling
// the runtime.GOOS switch themselves.
func PlatformFor() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformDarwin
	default:
		return PlatformPOSIX
	}
}

// invalidPath normalizes path as a side effect (via path.Clean) and
// reports whether the result still violates one of the ingress
// invariants from spec §3: no leading separator, no empty or "." path,
// no ".." component.
func invalidPath(doc *Metadata) bool {
	p := path.Clean(strings.TrimPrefix(doc.Path, "/"))
	doc.Path = p

	if p == "" || p == "." {
		return true
	}
	if strings.HasPrefix(p, "/") {
		return true
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// invalidChecksum reports whether doc's md5sum violates spec §3's
// checksum invariant: a file must carry one, it must base64-decode to
// exactly 16 bytes, and re-encoding must reproduce the original string.
// Folders never carry an md5sum and are never invalid on this account.
func invalidChecksum(doc *Metadata) bool {
	if doc.DocType != DocTypeFile {
		return false
	}
	if doc.MD5Sum == "" {
		return true
	}
	decoded, err := base64.StdEncoding.DecodeString(doc.MD5Sum)
	if err != nil {
		return true
	}
	if len(decoded) != 16 {
		return true
	}
	return base64.StdEncoding.EncodeToString(decoded) != doc.MD5Sum
}

// detectPlatformIncompatibilities returns the list of reasons doc cannot
// be materialized as-is under the local platform's naming rules. An
// empty list means compatible. This covers the well-known, testable
// core of each platform's restrictions — not every edge case a real
// filesystem driver enforces.
func detectPlatformIncompatibilities(doc *Metadata, platform Platform) []Incompatibility {
	var issues []Incompatibility

	maxLen := posixMaxPath
	if platform == PlatformWindows {
		maxLen = windowsMaxPath
	}
	if len(doc.Path) > maxLen {
		issues = append(issues, Incompatibility{Type: IncompatiblePathLength, Path: doc.Path, DocType: doc.DocType})
	}

	if platform == PlatformPOSIX {
		return issues
	}

	for _, seg := range strings.Split(doc.Path, "/") {
		if seg == "" {
			continue
		}
		base := seg
		if i := strings.LastIndex(base, "."); i > 0 {
			base = base[:i]
		}
		if windowsReservedNames[strings.ToUpper(base)] {
			issues = append(issues, Incompatibility{Type: IncompatibleReservedName, Path: doc.Path, DocType: doc.DocType})
		}
		if strings.ContainsAny(seg, windowsForbiddenChars) {
			issues = append(issues, Incompatibility{Type: IncompatibleCharacter, Path: doc.Path, DocType: doc.DocType})
		}
		if strings.HasSuffix(seg, ".") || strings.HasSuffix(seg, " ") {
			issues = append(issues, Incompatibility{Type: IncompatibleTrailingDot, Path: doc.Path, DocType: doc.DocType})
		}
	}

	return issues
}
