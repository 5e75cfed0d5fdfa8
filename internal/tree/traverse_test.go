package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildNestedDomains builds a tree with a secondary pseudoclock device
// hanging off a trigger in the primary clock domain.
func buildNestedDomains(t *testing.T, s *Shot) (primary, secondary *Device) {
	t.Helper()
	primary, _, card, _ := buildDomain(t, s)

	trig, err := s.NewTrigger("trig0", card.ID, "port0/line0")
	require.NoError(t, err)
	box, err := s.NewPseudoclockDevice("secondary_box", trig.ID, "", 1e-6)
	require.NoError(t, err)
	secondary, err = s.NewPseudoclock("clock2", box.ID, "clock 0", PseudoclockConfig{
		ClockMinimumPeriod: 2e-6,
		WaitDelay:          0.1,
		Timebase:           1e-8,
	})
	require.NoError(t, err)
	line, err := s.NewClockLine("line2", secondary.ID, "flag 0")
	require.NoError(t, err)
	card2, err := s.NewClockableDevice("card2", line.ID, "", 1e-7, 2e-6)
	require.NoError(t, err)
	_, err = s.NewOutput("ao2", card2.ID, "ao0")
	require.NoError(t, err)
	return primary, secondary
}

func deviceID(t *testing.T, s *Shot, name string) DeviceID {
	t.Helper()
	d, ok := s.DeviceByName(name)
	require.True(t, ok, "device %q not found", name)
	return d.ID
}

func names(s *Shot, ids []DeviceID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = s.Device(id).Name
	}
	return out
}

func TestDescendantDevices_StopsAtNestedPseudoclocks(t *testing.T) {
	s := NewShot("shot", 1e-9)
	buildNestedDomains(t, s)

	got := names(s, s.DescendantDevices(RootID, false))
	assert.Equal(t, []string{"pulseblaster"}, got,
		"the primary pseudoclock opens a new domain and is excluded")

	got = names(s, s.DescendantDevices(deviceID(t, s, "clock"), false))
	assert.Equal(t, []string{"line0", "ni_card", "ao0", "trig0", "secondary_box"}, got,
		"the secondary clock and its subtree belong to another domain")
}

func TestDescendantDevices_FullRecursion(t *testing.T) {
	s := NewShot("shot", 1e-9)
	buildNestedDomains(t, s)

	got := s.DescendantDevices(RootID, true)
	assert.Len(t, got, s.Devices()-1, "every node except the root, exactly once")

	seen := make(map[DeviceID]bool)
	for _, id := range got {
		assert.False(t, seen[id], "device %d visited twice", id)
		seen[id] = true
	}
}

func TestDomainDevices(t *testing.T) {
	s := NewShot("shot", 1e-9)
	_, secondary := buildNestedDomains(t, s)

	got := names(s, s.DomainDevices(secondary.ID))
	assert.Equal(t, []string{"line2", "card2", "ao2"}, got)
}

func TestDescendantInstructions(t *testing.T) {
	s := NewShot("shot", 1e-9)
	_, _, _, out := buildDomain(t, s)
	advanceToInstructions(t, s)

	_, err := s.Wait(5, "mid")
	require.NoError(t, err)
	_, err = out.Constant(0, 1.0)
	require.NoError(t, err)
	_, err = out.Constant(1, 2.0)
	require.NoError(t, err)

	// From the root with recursion: the wait plus both output instructions.
	all := s.DescendantInstructions(RootID, true)
	assert.Len(t, all, 3)

	// From the output itself: only its own.
	own := s.DescendantInstructions(out.ID, false)
	assert.Len(t, own, 2)
}

func TestCounter(t *testing.T) {
	c := NewCounter()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(0), c.Next())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(3), c.Current())
}
