package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotline/shotline/internal/phase"
	"github.com/shotline/shotline/internal/tree"
)

// buildRig builds the standard single-domain test tree:
//
//	shot -> pulseblaster -> clock (timebase 1e-7, min period 1e-6,
//	wait delay 0.5) -> line0 -> ni_card (min trigger 1e-7, min period
//	1.2e-6) -> ao0
func buildRig(t *testing.T, epsilon float64) (s *tree.Shot, clock, line, card, out *tree.Device) {
	t.Helper()
	s = tree.NewShot("shot", epsilon)

	master, err := s.NewPseudoclockDevice("pulseblaster", tree.RootID, "", 1e-6)
	require.NoError(t, err)
	clock, err = s.NewPseudoclock("clock", master.ID, "clock 0", tree.PseudoclockConfig{
		ClockMinimumPeriod: 1e-6,
		WaitDelay:          0.5,
		Timebase:           1e-7,
	})
	require.NoError(t, err)
	line, err = s.NewClockLine("line0", clock.ID, "flag 0")
	require.NoError(t, err)
	card, err = s.NewClockableDevice("ni_card", line.ID, "", 1e-7, 1.2e-6)
	require.NoError(t, err)
	out, err = s.NewOutput("ao0", card.ID, "ao0")
	require.NoError(t, err)
	return s, clock, line, card, out
}

func TestCeilToMultiple(t *testing.T) {
	// Exact multiples stay where they are instead of moving a tick up.
	assert.InDelta(t, 1.2e-6, ceilToMultiple(1.2e-6, 1e-7), 1e-18)
	assert.InDelta(t, 1e-6, ceilToMultiple(1e-6, 1e-7), 1e-18)

	// Everything else rounds up, never down.
	assert.InDelta(t, 1.3e-6, ceilToMultiple(1.25e-6, 1e-7), 1e-18)
	assert.InDelta(t, 1.3e-6, ceilToMultiple(1.21e-6, 1e-7), 1e-18)

	// Degenerate unit passes the value through.
	assert.Equal(t, 3.0, ceilToMultiple(3.0, 0))
}

func TestEstablishCommonLimits(t *testing.T) {
	s, clock, line, card, _ := buildRig(t, 0)
	require.NoError(t, s.Phase().Advance(phase.EstablishCommonLimits))
	require.NoError(t, EstablishCommonLimits(s))

	// The card is slower than the clock's own minimum, so it limits the
	// line. 1.2e-6 is already 12 ticks of the 1e-7 timebase.
	assert.InDelta(t, 1.2e-6, line.CommonMinimumPeriod, 1e-18)
	assert.Equal(t, card.ID, line.PeriodLimitingDevice)
	assert.InDelta(t, 1e-7, line.CommonMinimumTrigger, 1e-18)
	assert.Equal(t, card.ID, line.TriggerLimitingDevice)

	// The pseudoclock aggregates across its lines.
	assert.InDelta(t, 1.2e-6, clock.CommonMinimumPeriod, 1e-18)
	assert.Equal(t, card.ID, clock.PeriodLimitingDevice)
	assert.InDelta(t, 1e-7, clock.CommonMinimumTrigger, 1e-18)
}

func TestEstablishCommonLimits_SlowestOfSeveralLines(t *testing.T) {
	s, clock, _, _, _ := buildRig(t, 0)

	line1, err := s.NewClockLine("line1", clock.ID, "flag 1")
	require.NoError(t, err)
	slow, err := s.NewClockableDevice("slow_card", line1.ID, "", 5e-7, 1e-5)
	require.NoError(t, err)

	require.NoError(t, s.Phase().Advance(phase.EstablishCommonLimits))
	require.NoError(t, EstablishCommonLimits(s))

	assert.InDelta(t, 1e-5, line1.CommonMinimumPeriod, 1e-18)
	assert.InDelta(t, 1e-5, clock.CommonMinimumPeriod, 1e-18)
	assert.Equal(t, slow.ID, clock.PeriodLimitingDevice)
	assert.Equal(t, slow.ID, clock.TriggerLimitingDevice)
}

func TestEstablishCommonLimits_PeriodRoundedUpToTimebase(t *testing.T) {
	s, clock, line, card, _ := buildRig(t, 0)
	// Not an exact multiple of the 1e-7 timebase.
	card.ClockMinimumPeriod = 1.25e-6

	require.NoError(t, s.Phase().Advance(phase.EstablishCommonLimits))
	require.NoError(t, EstablishCommonLimits(s))

	assert.InDelta(t, 1.3e-6, line.CommonMinimumPeriod, 1e-18)
	assert.InDelta(t, 1.3e-6, clock.CommonMinimumPeriod, 1e-18)
}

func TestEstablishCommonLimits_WrongPhase(t *testing.T) {
	s, _, _, _, _ := buildRig(t, 0)
	// Still in AddDevices.
	err := EstablishCommonLimits(s)
	require.Error(t, err)
}

func TestEstablishInitialAttributes(t *testing.T) {
	s, clock, line, card, out := buildRig(t, 0)

	master := s.MasterPseudoclockDevice()
	require.NoError(t, master.SetOutputDelay(1e-3))
	require.NoError(t, card.SetOutputDelay(2e-3))

	require.NoError(t, s.Phase().Advance(phase.EstablishCommonLimits))
	require.NoError(t, EstablishCommonLimits(s))
	require.NoError(t, s.Phase().Advance(phase.EstablishInitialAttributes))
	require.NoError(t, EstablishInitialAttributes(s))

	assert.Equal(t, 0.5, s.NominalWaitDelay)

	// Start offsets accumulate output delays down the tree.
	assert.Equal(t, 0.0, master.T0)
	assert.Equal(t, 1e-3, clock.T0)
	assert.Equal(t, 1e-3, line.T0)
	assert.Equal(t, 1e-3, card.T0)
	assert.InDelta(t, 3e-3, out.T0, 1e-12)
	assert.InDelta(t, 3e-3, out.CumLatency, 1e-12)
}

func TestEstablishInitialAttributes_InitialTriggerTime(t *testing.T) {
	s, _, _, card, _ := buildRig(t, 0)

	trig, err := s.NewTrigger("trig0", card.ID, "port0/line0")
	require.NoError(t, err)
	require.NoError(t, trig.SetOutputDelay(1e-6))
	secondary, err := s.NewPseudoclockDevice("secondary", trig.ID, "", 1e-6)
	require.NoError(t, err)
	require.NoError(t, secondary.SetInitialTriggerTime(0.25))

	require.NoError(t, s.Phase().Advance(phase.EstablishCommonLimits))
	require.NoError(t, EstablishCommonLimits(s))
	require.NoError(t, s.Phase().Advance(phase.EstablishInitialAttributes))
	require.NoError(t, EstablishInitialAttributes(s))

	// The pinned trigger time overrides the as-early-as-possible default.
	assert.Equal(t, 0.25, secondary.T0)
	// Latency still accumulates through the trigger.
	assert.Equal(t, 1e-6, secondary.CumLatency)
}
