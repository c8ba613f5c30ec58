package timekeeper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecondsRoundTrip(t *testing.T) {
	cases := []float64{0, 1, 1234.5678, 1.6e9, 1.6e9 - 0.25}
	for _, s := range cases {
		ts := FromSeconds(s)
		got := ts.ToSeconds()
		require.InDelta(t, s, got, 1e-6, "round trip for %v", s)
	}
}

func TestClockOffset(t *testing.T) {
	c := NewClock()
	before := c.Now()
	c.SetOffset(5_000_000)
	after := c.Now()
	require.GreaterOrEqual(t, int64(after), int64(before)+5_000_000-1000)
}
