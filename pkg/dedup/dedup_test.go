package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_SeenMarksFirstThenRepeats(t *testing.T) {
	c := New(10)

	require.False(t, c.Seen("0xabc"), "first observation must not be reported as a duplicate")
	require.True(t, c.Seen("0xabc"), "second observation of the same hash must be reported as a duplicate")
	require.Equal(t, 1, c.Len())
}

func TestCache_DistinctHashesTrackedIndependently(t *testing.T) {
	c := New(10)

	require.False(t, c.Seen("0x1"))
	require.False(t, c.Seen("0x2"))
	require.True(t, c.Seen("0x1"))
	require.True(t, c.Seen("0x2"))
	require.Equal(t, 2, c.Len())
}

func TestCache_EvictsOldestBeyondCapacity(t *testing.T) {
	c := New(2)

	c.Seen("a")
	c.Seen("b")
	c.Seen("c") // evicts "a"

	require.Equal(t, 2, c.Len())
	require.False(t, c.Seen("a"), "evicted hash must be treated as unseen again")
}

func TestNew_defaultsNonPositiveSizeToStandardCapacity(t *testing.T) {
	c := New(0)
	require.NotNil(t, c)
	require.False(t, c.Seen("x"))
	require.True(t, c.Seen("x"))
}
