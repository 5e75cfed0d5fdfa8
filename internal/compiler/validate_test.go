package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// codes extracts just the violation codes for order-insensitive checks.
func codes(violations []ValidationError) []string {
	out := make([]string, len(violations))
	for i, v := range violations {
		out[i] = v.Code
	}
	return out
}

func TestCheckInstructionsValid_DeadTime(t *testing.T) {
	s, _, _, _, out := buildRig(t, 0)
	p := New(s)
	require.NoError(t, p.Start())

	_, err := s.Wait(7, "boundary")
	require.NoError(t, err)
	// 7.1 is after the wait but inside the 0.5 s resynchronisation dead
	// time: relative time -0.4.
	_, err = out.Constant(7.1, 1.0)
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	assert.False(t, result.OK())
	require.Len(t, result.Violations, 1)

	v := result.Violations[0]
	assert.Equal(t, ErrInstructionInDeadTime, v.Code)
	assert.Equal(t, "ao0", v.Device)
	assert.Contains(t, v.Message, "dead time")
	assert.True(t, v.Site.IsValid())

	// The artifact is still emitted so the offending times can be seen.
	assert.NotNil(t, result.Sequence)
}

func TestCheckInstructionsValid_NegativeTimeBeforeStart(t *testing.T) {
	s, _, _, _, out := buildRig(t, 0)
	p := New(s)
	require.NoError(t, p.Start())

	// Negative relative time in segment 0 means the requested time was
	// negative; there is no wait to blame.
	_, err := out.Constant(-0.4, 1.0)
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)

	v := result.Violations[0]
	assert.Equal(t, ErrInstructionInDeadTime, v.Code)
	assert.Contains(t, v.Message, "before the experiment starts")
	assert.NotContains(t, v.Message, "dead time")
}

func TestCheckInstructionsValid_SameTickConflict(t *testing.T) {
	s, _, _, _, out := buildRig(t, 0)
	p := New(s)
	require.NoError(t, p.Start())

	_, err := out.Function(0, 1, sine(), 20)
	require.NoError(t, err)
	_, err = out.Function(0, 2, sine(), 20)
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, ErrSameTickConflict, result.Violations[0].Code)
}

func TestCheckInstructionsValid_PointInstructionsShareTicks(t *testing.T) {
	s, _, line, _, out := buildRig(t, 0)
	p := New(s)
	require.NoError(t, p.Start())

	// A constant and a ramp starting on the same tick do not conflict;
	// only two ramps can occupy overlapping ranges. Two coincident
	// constants are likewise legal, with creation order deciding which
	// value wins.
	_, err := out.Constant(0, 7.0)
	require.NoError(t, err)
	_, err = out.Function(0, 7, sine(), 20)
	require.NoError(t, err)
	w, err := s.Wait(7, "first_wait")
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Empty(t, result.Violations)
	assert.Empty(t, result.TimingErrors)

	assert.InDelta(t, 1.2e-6, line.CommonMinimumPeriod, 1e-18)
	for _, id := range out.Instructions {
		inst := s.Instruction(id)
		assert.Equal(t, 0, inst.Segment)
		assert.Equal(t, 0.0, inst.RelativeT)
		assert.Equal(t, int64(0), inst.QuantisedT)
	}
	assert.Equal(t, 1, w.Segment)
}

func TestCheckInstructionsValid_OverlappingRamps(t *testing.T) {
	s, _, _, _, out := buildRig(t, 0)
	p := New(s)
	require.NoError(t, p.Start())

	// A 2 s ramp from t=0 is still running when the second ramp starts
	// at t=1.
	_, err := out.Function(0, 2, sine(), 20)
	require.NoError(t, err)
	_, err = out.Function(1, 1, sine(), 20)
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, ErrOverlappingRamps, result.Violations[0].Code)
	assert.Equal(t, "ao0", result.Violations[0].Device)
}

func TestCheckInstructionsValid_RampsInDifferentSegmentsDoNotOverlap(t *testing.T) {
	s, _, _, _, out := buildRig(t, 0)
	p := New(s)
	require.NoError(t, p.Start())

	// The first ramp nominally runs past the wait, but past the boundary
	// time restarts: segments cannot overlap by construction.
	_, err := out.Function(0, 2, sine(), 20)
	require.NoError(t, err)
	_, err = s.Wait(1, "boundary")
	require.NoError(t, err)
	_, err = out.Function(1.6, 0.5, sine(), 20)
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	assert.Empty(t, result.Violations)
}

func TestCheckInstructionsValid_NegativeDuration(t *testing.T) {
	s, _, _, _, out := buildRig(t, 0)
	p := New(s)
	require.NoError(t, p.Start())

	_, err := out.Function(0, -1, sine(), 20)
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, ErrNegativeDuration, result.Violations[0].Code)
}

func TestCheckInstructionsValid_SampleRateTooFast(t *testing.T) {
	s, _, _, _, out := buildRig(t, 0)
	p := New(s)
	require.NoError(t, p.Start())

	// One tick per sample: far below the 1.2e-6 common minimum period
	// imposed by the card.
	_, err := out.Function(0, 1, sine(), 1e7)
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)

	v := result.Violations[0]
	assert.Equal(t, ErrSampleRateTooFast, v.Code)
	assert.Equal(t, "ao0", v.Device)
	assert.Contains(t, v.Message, "ni_card")
}

func TestCheckInstructionsValid_TriggerDutyCycle(t *testing.T) {
	s, _, _, card, _ := buildRig(t, 0)
	// A trigger pulse must fit high and low inside one period; 1e-6
	// twice does not fit in 1.2e-6.
	card.ClockMinimumTrigger = 1e-6

	p := New(s)
	require.NoError(t, p.Start())

	result, err := p.Stop()
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)

	v := result.Violations[0]
	assert.Equal(t, ErrTriggerDutyCycle, v.Code)
	assert.Equal(t, "line0", v.Device)
	assert.Contains(t, v.Message, "ni_card")
}

func TestCheckInstructionsValid_CollectsAcrossOutputs(t *testing.T) {
	s, _, _, card, out := buildRig(t, 0)
	out2, err := s.NewOutput("ao1", card.ID, "ao1")
	require.NoError(t, err)

	p := New(s)
	require.NoError(t, p.Start())

	// One violation on each output; one report carries both.
	_, err = out.Function(0, 1, sine(), 20)
	require.NoError(t, err)
	_, err = out.Function(0, 2, sine(), 20)
	require.NoError(t, err)
	_, err = out2.Function(0, -1, sine(), 20)
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ErrSameTickConflict, ErrNegativeDuration}, codes(result.Violations))
}
