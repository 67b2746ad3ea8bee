package h7

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/h7link/pkg/l0/link"
)

func TestFormatStats(t *testing.T) {
	out := FormatStats(link.Stats{Transfers: 3, PacketsIn: 2, TapFrames: 1})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 9)
	require.Equal(t, "transfers:         3", lines[0])
	require.Equal(t, "packets in:        2", lines[3])
	require.Equal(t, "tapped frames:     1", lines[8])
}

func TestWatchers(t *testing.T) {
	e := link.NewEngine(nil)
	var set watcherSet
	require.NoError(t, set.watch(e, link.ChannelADC, nil))
	require.NoError(t, set.watch(e, link.ChannelPWM, nil))
	require.Error(t, set.watch(e, link.ChannelNone, nil))
	require.True(t, e.Registered(link.ChannelADC))

	set.unwatch(link.ChannelADC)
	require.False(t, e.Registered(link.ChannelADC))
	require.True(t, e.Registered(link.ChannelPWM))
	set.unwatch()
	require.False(t, e.Registered(link.ChannelPWM))
}
