package compiler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotline/shotline/internal/tree"
)

func sine() tree.Waveform {
	return tree.Waveform{Name: "sin", Eval: math.Sin}
}

func TestQuantise(t *testing.T) {
	ticks, nearest, ok := quantise(1.2e-6, 1e-7, 0.01)
	assert.True(t, ok)
	assert.Equal(t, int64(12), ticks)
	assert.InDelta(t, 1.2e-6, nearest, 1e-18)

	// Exactly on the grid, negative values included.
	ticks, _, ok = quantise(-0.4, 1e-7, 0.01)
	assert.True(t, ok)
	assert.Equal(t, int64(-4000000), ticks)

	// Off the grid by more than tolerance allows.
	_, nearest, ok = quantise(1.55e-7, 1e-7, 0.01)
	assert.False(t, ok)
	assert.InDelta(t, 2e-7, nearest, 1e-18)

	// Within tolerance of a tick.
	ticks, _, ok = quantise(2.0000000001e-7, 1e-7, 0.01)
	assert.True(t, ok)
	assert.Equal(t, int64(2), ticks)
}

func TestPipeline_FullRun(t *testing.T) {
	s, _, _, _, out := buildRig(t, 0)
	p := New(s)
	require.NoError(t, p.Start())

	// Segment 0 instructions, then a wait, then a segment 1 instruction.
	_, err := out.Constant(0, 7.0)
	require.NoError(t, err)
	dur, err := out.Function(1, 7, sine(), 20)
	require.NoError(t, err)
	assert.Equal(t, 7.0, dur)
	_, err = s.Wait(7, "after_mot")
	require.NoError(t, err)
	_, err = out.Constant(8, 0.0)
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	assert.Empty(t, result.TimingErrors)
	assert.Empty(t, result.Violations)
	assert.True(t, result.OK())

	// The wait is the boundary of segment 1 and has no clock-relative
	// time of its own.
	waits := s.Waits()
	require.Len(t, waits, 1)
	assert.Equal(t, 1, waits[0].Segment)
	assert.Equal(t, int64(0), waits[0].QuantisedT)
	assert.True(t, waits[0].Resolved)

	require.NotNil(t, result.Sequence)
	require.Len(t, result.Sequence.Outputs, 1)
	compiled := result.Sequence.Outputs[0]
	assert.Equal(t, "ao0", compiled.Device)
	assert.Equal(t, "clock", compiled.Pseudoclock)
	assert.Equal(t, 1e-7, compiled.Timebase)
	require.Len(t, compiled.Instructions, 3)

	// Segment 0 at t=0: zero ticks from the start of the segment.
	first := compiled.Instructions[0]
	assert.Equal(t, "constant", first.Kind)
	assert.Equal(t, 0, first.Segment)
	assert.Equal(t, 0.0, first.RelativeT)
	assert.Equal(t, int64(0), first.QuantisedT)

	// The ramp: 7 s is 7e7 ticks, a 20 Hz sample period is 5e5 ticks.
	ramp := compiled.Instructions[1]
	assert.Equal(t, "function", ramp.Kind)
	assert.Equal(t, "sin", ramp.Waveform)
	assert.Equal(t, int64(1e7), ramp.QuantisedT)
	assert.Equal(t, int64(7e7), ramp.QuantisedDuration)
	assert.Equal(t, int64(5e5), ramp.QuantisedSamplePeriod)

	// Past the wait: relative to the clock resuming 0.5 s after t=7.
	last := compiled.Instructions[2]
	assert.Equal(t, 1, last.Segment)
	assert.InDelta(t, 0.5, last.RelativeT, 1e-12)
	assert.Equal(t, int64(5e6), last.QuantisedT)
}

func TestPipeline_EpsilonWidensDeadTime(t *testing.T) {
	s, _, _, _, out := buildRig(t, 1e-7)
	p := New(s)
	require.NoError(t, p.Start())

	_, err := s.Wait(7, "boundary")
	require.NoError(t, err)
	_, err = out.Constant(7.5000001, 1.0)
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	require.True(t, result.OK())

	// relative_t = 7.5000001 - 7 - (0.5 + 1e-7) = 0.
	inst := result.Sequence.Outputs[0].Instructions[0]
	assert.Equal(t, int64(0), inst.QuantisedT)
}

func TestConvertTiming_CollectsQuantisationErrors(t *testing.T) {
	s, _, _, _, out := buildRig(t, 0)
	p := New(s)
	require.NoError(t, p.Start())

	// Two unrepresentable times; both must be reported in one run.
	_, err := out.Constant(1.55e-7, 1.0)
	require.NoError(t, err)
	_, err = out.Constant(3.55e-7, 2.0)
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	assert.False(t, result.OK())
	require.Len(t, result.TimingErrors, 2)

	var qe *QuantisationError
	require.ErrorAs(t, result.TimingErrors[0], &qe)
	assert.Equal(t, "t", qe.Field)
	assert.Equal(t, 1.55e-7, qe.Requested)
	assert.InDelta(t, 2e-7, qe.Nearest, 1e-18)
	assert.Equal(t, 1e-7, qe.Timebase)
	assert.True(t, qe.Site.IsValid())
	assert.True(t, IsQuantisationError(result.TimingErrors[0]))

	// No artifact when the timing pass left instructions unresolved, and
	// the validator reports them as such.
	assert.Nil(t, result.Sequence)
	require.NotEmpty(t, result.Violations)
	for _, v := range result.Violations {
		assert.Equal(t, ErrUnresolvedInstruction, v.Code)
	}
}

func TestConvertTiming_QuantisesDurationAndSamplePeriod(t *testing.T) {
	s, _, _, _, out := buildRig(t, 0)
	p := New(s)
	require.NoError(t, p.Start())

	// t lands on the grid but the sample period does not: 1/3e6 Hz is
	// not near a 1e-7 tick.
	_, err := out.Function(0, 1, sine(), 3e6)
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	require.Len(t, result.TimingErrors, 1)

	var qe *QuantisationError
	require.ErrorAs(t, result.TimingErrors[0], &qe)
	assert.Equal(t, "sample_period", qe.Field)
}

func TestConvertTiming_DuplicateWaitsFatal(t *testing.T) {
	s, _, _, _, out := buildRig(t, 0)
	p := New(s)
	require.NoError(t, p.Start())

	_, err := s.Wait(3.0, "first")
	require.NoError(t, err)
	_, err = s.Wait(3.0, "second")
	require.NoError(t, err)
	_, err = out.Constant(0, 1.0)
	require.NoError(t, err)

	result, err := p.Stop()
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, tree.IsStructuralError(err))

	var se *tree.StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, tree.ErrCodeDuplicateWait, se.Code)
	assert.Contains(t, se.Message, "first")
	assert.Contains(t, se.Message, "second")
}

func TestConvertTiming_StaticUnclockedResolvesTrivially(t *testing.T) {
	s := tree.NewShot("shot", 0)
	static, err := s.NewStaticDevice("dds", tree.RootID, "")
	require.NoError(t, err)
	so, err := s.NewStaticOutput("freq", static.ID, "channel 0")
	require.NoError(t, err)

	p := New(s)
	require.NoError(t, p.Start())
	_, err = so.Static(80e6)
	require.NoError(t, err)

	result, err := p.Stop()
	require.NoError(t, err)
	require.True(t, result.OK())

	inst := result.Sequence.Outputs[0].Instructions[0]
	assert.Equal(t, "static", inst.Kind)
	assert.Equal(t, 0, inst.Segment)
	assert.Equal(t, int64(0), inst.QuantisedT)
}

func TestConvertTiming_QuantisedTimesAreTickMultiples(t *testing.T) {
	s, clock, _, _, out := buildRig(t, 0)
	p := New(s)
	require.NoError(t, p.Start())

	times := []float64{0, 1.2e-6, 5e-3, 1, 6.9999}
	for _, tm := range times {
		_, err := out.Constant(tm, 1.0)
		require.NoError(t, err)
	}

	result, err := p.Stop()
	require.NoError(t, err)
	require.True(t, result.OK())

	for _, inst := range result.Sequence.Outputs[0].Instructions {
		back := float64(inst.QuantisedT) * clock.Timebase
		assert.InDelta(t, inst.RelativeT, back, s.Tolerance*clock.Timebase,
			"tick %d does not reproduce relative time %v", inst.QuantisedT, inst.RelativeT)
	}
}
