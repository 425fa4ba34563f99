package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIgnoreList_DefaultsCatchKnownJunkFiles(t *testing.T) {
	l := NewIgnoreList()
	cases := []string{
		"notes.txt.cozy-conflict",
		"notes.txt.cozy-rejected-123",
		".cozy-trash/old.txt",
		".DS_Store",
		"sub/dir/Thumbs.db",
		"draft.tmp",
		"draft.swp",
		".~lock.draft.odt#",
	}
	for _, path := range cases {
		assert.True(t, l.ShouldIgnore(path), "expected %q to be ignored", path)
	}
}

func TestIgnoreList_OrdinaryPathsAreNotIgnored(t *testing.T) {
	l := NewIgnoreList()
	assert.False(t, l.ShouldIgnore("notes.txt"))
	assert.False(t, l.ShouldIgnore("photos/vacation.jpg"))
}

func TestIgnoreList_ExtraPatterns(t *testing.T) {
	l := NewIgnoreList("*.secret")
	assert.True(t, l.ShouldIgnore("keys.secret"))
	assert.False(t, l.ShouldIgnore("keys.public"))
}

func TestIgnoreList_Predicate_UsesDocPath(t *testing.T) {
	l := NewIgnoreList()
	pred := l.Predicate()
	assert.True(t, pred(&Metadata{Path: ".DS_Store"}))
	assert.False(t, pred(&Metadata{Path: "a/b.txt"}))
}
