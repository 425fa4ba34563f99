package syncengine

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// extractRev parses the integer prefix out of a rev string of the form
// "N-hash". An empty or malformed rev extracts to 0, matching "both
// absent/zero ⇒ nothing to do" (spec §3).
func extractRev(rev string) int {
	if rev == "" {
		return 0
	}
	n, _, ok := strings.Cut(rev, "-")
	if !ok {
		n = rev
	}
	v, err := strconv.Atoi(n)
	if err != nil {
		return 0
	}
	return v
}

// ExtractRev exposes extractRev to adapter packages (e.g. localside's
// watcher) that need to bump a record's side counter without duplicating
// the "N-hash" parsing rule.
func ExtractRev(rev string) int { return extractRev(rev) }

// nextRev builds the rev string for revision n+1. The hash segment is an
// opaque disambiguator, not load-bearing for any comparison the engine
// performs (only the integer prefix is ever compared).
func nextRev(prevRev string) string {
	n := extractRev(prevRev) + 1
	return fmt.Sprintf("%d-%s", n, revHash())
}

func revHash() string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(uuid.NewString()))
	return fmt.Sprintf("%08x", h.Sum32())[:8]
}
