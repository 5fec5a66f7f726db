package accesscode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	h := Hash("grace janin")

	assert.True(t, Compare(h, h))
	assert.True(t, Compare("", ""))
	assert.False(t, Compare(h, Hash("guestmoir")))
	assert.False(t, Compare(h, strings.ToUpper(h)), "comparison is case-sensitive")
	assert.False(t, Compare(h, h[:DigestLength-1]), "length mismatch")
	assert.False(t, Compare(h, h+"0"))

	// Differ only in the last position.
	last := h[:DigestLength-1] + "x"
	assert.False(t, Compare(h, last))
}
