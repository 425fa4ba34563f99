package remoteside

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cozysync/engine/internal/syncengine"
)

func TestPoller_PathFor_NoPrefix(t *testing.T) {
	p := &Poller{}
	rel, ok := p.pathFor("docs/report.txt")
	assert.True(t, ok)
	assert.Equal(t, "docs/report.txt", rel)
}

func TestPoller_PathFor_StripsPrefix(t *testing.T) {
	p := &Poller{prefix: "datasites/alice"}
	rel, ok := p.pathFor("datasites/alice/docs/report.txt")
	assert.True(t, ok)
	assert.Equal(t, "docs/report.txt", rel)
}

func TestPoller_PathFor_RejectsKeyOutsidePrefix(t *testing.T) {
	p := &Poller{prefix: "datasites/alice"}
	_, ok := p.pathFor("datasites/bob/docs/report.txt")
	assert.False(t, ok)
}

func TestPoller_PathFor_RejectsBarePrefixMarker(t *testing.T) {
	p := &Poller{prefix: "datasites/alice"}
	_, ok := p.pathFor("datasites/alice/")
	assert.False(t, ok, "the prefix marker itself carries no relative path")
}

func TestBaseRemoteDoc_ClonesExisting(t *testing.T) {
	existing := &syncengine.Metadata{ID: "a", Path: "a", Errors: 2}
	doc := baseRemoteDoc("a", "a", existing)
	assert.Equal(t, 2, doc.Errors)

	doc.Errors = 0
	assert.Equal(t, 2, existing.Errors, "mutating the returned doc must not alias the stored record")
}

func TestBaseRemoteDoc_NewRecordWhenNoneExists(t *testing.T) {
	doc := baseRemoteDoc("a", "a/b.txt", nil)
	assert.Equal(t, "a", doc.ID)
	assert.Equal(t, "a/b.txt", doc.Path)
}
