package syncengine

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"a/b/c.txt", false},
		{"/a/b", true},
		{"a/../b", true},
		{"", true},
		{".", true},
	}
	for _, tc := range cases {
		doc := &Metadata{Path: tc.path}
		assert.Equal(t, tc.want, invalidPath(doc), "path=%q", tc.path)
	}
}

func validMD5() string {
	return base64.StdEncoding.EncodeToString([]byte("0123456789012345"[:16]))
}

func TestInvalidChecksum_FolderAlwaysValid(t *testing.T) {
	doc := &Metadata{DocType: DocTypeFolder}
	assert.False(t, invalidChecksum(doc))
}

func TestInvalidChecksum_FileRequiresWellFormedMD5(t *testing.T) {
	assert.True(t, invalidChecksum(&Metadata{DocType: DocTypeFile, MD5Sum: ""}))
	assert.True(t, invalidChecksum(&Metadata{DocType: DocTypeFile, MD5Sum: "not-base64!"}))
	assert.False(t, invalidChecksum(&Metadata{DocType: DocTypeFile, MD5Sum: validMD5()}))
}

func TestDetectPlatformIncompatibilities_POSIX_OnlyLength(t *testing.T) {
	doc := &Metadata{Path: "CON/file.txt", DocType: DocTypeFile}
	issues := detectPlatformIncompatibilities(doc, PlatformPOSIX)
	assert.Empty(t, issues)
}

func TestDetectPlatformIncompatibilities_Windows_ReservedName(t *testing.T) {
	doc := &Metadata{Path: "a/CON/file.txt", DocType: DocTypeFile}
	issues := detectPlatformIncompatibilities(doc, PlatformWindows)
	assert.Contains(t, issueTypes(issues), IncompatibleReservedName)
}

func TestDetectPlatformIncompatibilities_Windows_ForbiddenChar(t *testing.T) {
	doc := &Metadata{Path: `a/b<c>.txt`, DocType: DocTypeFile}
	issues := detectPlatformIncompatibilities(doc, PlatformWindows)
	assert.Contains(t, issueTypes(issues), IncompatibleCharacter)
}

func TestDetectPlatformIncompatibilities_Windows_TrailingDot(t *testing.T) {
	doc := &Metadata{Path: "a/b.", DocType: DocTypeFile}
	issues := detectPlatformIncompatibilities(doc, PlatformWindows)
	assert.Contains(t, issueTypes(issues), IncompatibleTrailingDot)
}

func TestDetectPlatformIncompatibilities_PathTooLong(t *testing.T) {
	doc := &Metadata{Path: strings.Repeat("a", windowsMaxPath+1), DocType: DocTypeFile}
	issues := detectPlatformIncompatibilities(doc, PlatformWindows)
	assert.Contains(t, issueTypes(issues), IncompatiblePathLength)
}

func issueTypes(issues []Incompatibility) []IncompatibilityType {
	out := make([]IncompatibilityType, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Type)
	}
	return out
}
