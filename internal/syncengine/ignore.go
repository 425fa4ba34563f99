package syncengine

import (
	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnoreLines are patterns no sync should ever materialize,
// trimmed from the teacher's sync_ignore.go down to the generic set (the
// teacher's app-specific exclusions don't apply here).
var defaultIgnoreLines = []string{
	"**/*.cozy-conflict*",
	"**/*.cozy-rejected*",
	".cozy-trash/",
	".DS_Store",
	"Thumbs.db",
	"Icon\r",
	"*.tmp",
	"*.swp",
	".~lock.*",
}

// IgnoreList is the "ignore predicate (external)" referenced by spec
// §4.4 step 1, given a default concrete implementation here so the
// engine can be exercised without a caller-supplied one.
type IgnoreList struct {
	ignore *gitignore.GitIgnore
}

// NewIgnoreList compiles the default patterns plus any extra lines the
// caller supplies (e.g. the contents of a .cozyignore file).
func NewIgnoreList(extra ...string) *IgnoreList {
	lines := append(append([]string{}, defaultIgnoreLines...), extra...)
	return &IgnoreList{ignore: gitignore.CompileIgnoreLines(lines...)}
}

// ShouldIgnore reports whether path matches an ignore pattern.
func (l *IgnoreList) ShouldIgnore(path string) bool {
	return l.ignore.MatchesPath(path)
}

// Predicate adapts ShouldIgnore to the func(*Metadata) bool shape the
// engine's apply() expects.
func (l *IgnoreList) Predicate() func(*Metadata) bool {
	return func(doc *Metadata) bool {
		return l.ShouldIgnore(doc.Path)
	}
}
