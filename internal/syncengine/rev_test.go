package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractRev(t *testing.T) {
	cases := map[string]int{
		"":       0,
		"0-abcd": 0,
		"3-deadbeef": 3,
		"not-a-number": 0,
		"42": 42,
	}
	for rev, want := range cases {
		assert.Equal(t, want, extractRev(rev), "rev=%q", rev)
	}
}

func TestNextRev_IncrementsIntegerPrefix(t *testing.T) {
	r1 := nextRev("")
	assert.Equal(t, 1, extractRev(r1))

	r2 := nextRev(r1)
	assert.Equal(t, 2, extractRev(r2))
}

func TestNextRev_HashSegmentVaries(t *testing.T) {
	a := nextRev("5-aaaa")
	b := nextRev("5-aaaa")
	assert.Equal(t, extractRev(a), extractRev(b))
	assert.NotEqual(t, a, b, "hash disambiguator should differ across calls")
}
