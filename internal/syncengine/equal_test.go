package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func folderDoc() *Metadata {
	return &Metadata{ID: "a/b", DocType: DocTypeFolder, Tags: []string{"x", "y"}, Ino: 7}
}

func fileDoc() *Metadata {
	return &Metadata{ID: "a/b.txt", DocType: DocTypeFile, MD5Sum: "sum", Size: 10, Ino: 7}
}

func TestSameFolder_Reflexive(t *testing.T) {
	d := folderDoc()
	assert.True(t, sameFolder(d, d))
}

func TestSameFolder_DiffersOnTrashed(t *testing.T) {
	a := folderDoc()
	b := folderDoc()
	b.Trashed = true
	assert.False(t, sameFolder(a, b))
}

func TestSameFolder_IgnoresUpdatedAt(t *testing.T) {
	a := folderDoc()
	b := folderDoc()
	b.UpdatedAt = a.UpdatedAt.Add(modTimeTolerance * 10)
	assert.True(t, sameFolder(a, b))
}

func TestSameFile_Reflexive(t *testing.T) {
	d := fileDoc()
	assert.True(t, sameFile(d, d))
}

func TestSameFile_DiffersOnMD5(t *testing.T) {
	a := fileDoc()
	b := fileDoc()
	b.MD5Sum = "other"
	assert.False(t, sameFile(a, b))
	assert.False(t, sameBinary(a, b))
}

func TestSameFile_NilHandling(t *testing.T) {
	assert.True(t, sameFile(nil, nil))
	assert.False(t, sameFile(fileDoc(), nil))
}

func TestEqualTags(t *testing.T) {
	assert.True(t, equalTags(nil, nil))
	assert.True(t, equalTags([]string{"a"}, []string{"a"}))
	assert.False(t, equalTags([]string{"a"}, []string{"a", "b"}))
	assert.False(t, equalTags([]string{"a"}, []string{"b"}))
}
