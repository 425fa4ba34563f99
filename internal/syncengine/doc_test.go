package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_Clone_Nil(t *testing.T) {
	var m *Metadata
	assert.Nil(t, m.Clone())
}

func TestMetadata_Clone_DeepCopiesSlicesAndMoveFrom(t *testing.T) {
	orig := &Metadata{
		ID:                "a",
		Tags:              []string{"x", "y"},
		Incompatibilities: []Incompatibility{{Type: IncompatibleCharacter}},
		MoveFrom:          &Metadata{ID: "old", Tags: []string{"z"}},
	}

	clone := orig.Clone()
	require.NotSame(t, orig, clone)
	require.NotSame(t, &orig.Tags, &clone.Tags)
	require.NotSame(t, orig.MoveFrom, clone.MoveFrom)

	clone.Tags[0] = "mutated"
	clone.Incompatibilities[0].Type = IncompatibleTrailingDot
	clone.MoveFrom.ID = "mutated"

	assert.Equal(t, "x", orig.Tags[0], "mutating the clone's tags must not affect the original")
	assert.Equal(t, IncompatibleCharacter, orig.Incompatibilities[0].Type)
	assert.Equal(t, "old", orig.MoveFrom.ID)
}

func TestMetadata_Clone_MoveFromForestInvariant(t *testing.T) {
	grandparent := &Metadata{ID: "grandparent"}
	parent := &Metadata{ID: "parent", MoveFrom: grandparent}
	doc := &Metadata{ID: "doc", MoveFrom: parent}

	clone := doc.Clone()
	require.NotNil(t, clone.MoveFrom)
	assert.Equal(t, "parent", clone.MoveFrom.ID)
	assert.Nil(t, clone.MoveFrom.MoveFrom, "MoveFrom is never more than one level deep")
}

func TestMetadata_Clone_NilSlicesStayNil(t *testing.T) {
	orig := &Metadata{ID: "a"}
	clone := orig.Clone()
	assert.Nil(t, clone.Tags)
	assert.Nil(t, clone.Incompatibilities)
	assert.Nil(t, clone.MoveFrom)
}

func TestMetadata_IsFileIsFolder(t *testing.T) {
	assert.True(t, (&Metadata{DocType: DocTypeFile}).IsFile())
	assert.False(t, (&Metadata{DocType: DocTypeFile}).IsFolder())
	assert.True(t, (&Metadata{DocType: DocTypeFolder}).IsFolder())
}
