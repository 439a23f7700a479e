package skiplist_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codefang-analyze/pkg/logparser/skiplist"
)

func TestParse_FirstMatchWins(t *testing.T) {
	t.Parallel()

	sl, err := skiplist.Parse(strings.NewReader("-*/vendor/*\n+*/vendor/keep.c\n"), nil)
	require.NoError(t, err)

	assert.True(t, sl.Skip("/p/vendor/a.c"))
	assert.False(t, sl.Skip("/p/src/a.c"))
}

func TestParse_SkipsMalformedLinesWithWarning(t *testing.T) {
	t.Parallel()

	sl, err := skiplist.Parse(strings.NewReader("not-a-rule\n-*/excluded/*\n"), nil)
	require.NoError(t, err)

	assert.True(t, sl.Skip("/p/excluded/a.c"))
}

func TestSkip_UnmatchedPathIsIncluded(t *testing.T) {
	t.Parallel()

	sl, err := skiplist.Parse(strings.NewReader("-*/vendor/*\n"), nil)
	require.NoError(t, err)

	assert.False(t, sl.Skip("/p/src/a.c"))
}

func TestSkip_NilSkipListIncludesEverything(t *testing.T) {
	t.Parallel()

	var sl *skiplist.SkipList

	assert.False(t, sl.Skip("/p/src/a.c"))
}
