package syncengine

import "time"

// modTimeTolerance documents why updated_at is never compared by the
// equality predicates below: filesystem mtimes differ across platforms
// and remounts by up to a few seconds. Only a caller that has to compare
// timestamps directly (the watcher, outside this package) should apply
// it.
const modTimeTolerance = 3 * time.Second

// sameFolder reports whether two folder records describe the same
// observable state, per spec §4.8. sameFolder(a, a) is always true.
func sameFolder(a, b *Metadata) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID &&
		a.DocType == b.DocType &&
		a.Remote == b.Remote &&
		equalTags(a.Tags, b.Tags) &&
		a.Trashed == b.Trashed &&
		a.Ino == b.Ino
}

// sameFile reports whether two file records describe the same
// observable state, per spec §4.8. sameFile(a, a) is always true.
func sameFile(a, b *Metadata) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID &&
		a.DocType == b.DocType &&
		a.MD5Sum == b.MD5Sum &&
		a.Remote == b.Remote &&
		equalTags(a.Tags, b.Tags) &&
		a.Size == b.Size &&
		a.Trashed == b.Trashed &&
		a.Ino == b.Ino &&
		a.Executable == b.Executable
}

// sameBinary reports whether two files have identical content.
func sameBinary(a, b *Metadata) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.MD5Sum == b.MD5Sum
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
