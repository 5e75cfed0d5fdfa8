package tree

import (
	"fmt"

	"github.com/shotline/shotline/internal/ir"
	"github.com/shotline/shotline/internal/phase"
)

// InstructionID is an index into a shot's instruction arena.
type InstructionID int64

// Waveform is a named time-to-value mapping used by function ramps. The
// name travels into the compiled artifact; Eval is sampled by code
// generators downstream of the compiler.
type Waveform struct {
	Name string
	Eval func(t float64) float64
}

// ConstWaveform returns a waveform that evaluates to a fixed value.
func ConstWaveform(value float64) Waveform {
	return Waveform{
		Name: "const",
		Eval: func(float64) float64 { return value },
	}
}

// Instruction is a node owned by the shot (waits) or an output device
// (everything else). The quantised fields are populated by the timing
// resolver in the ConvertTiming phase and are tick counts on the owning
// pseudoclock's timebase.
type Instruction struct {
	ID    InstructionID
	Kind  ir.InstructionKind
	Owner DeviceID

	// Number records creation order across the whole shot; it is the
	// stable tie-break when two instructions quantise to the same tick.
	Number int64

	// T is the nominal time in user units.
	T float64

	Name       string // waits only
	Value      float64
	Duration   float64
	SampleRate float64
	Waveform   Waveform
	Site       ir.CallSite

	// Set by the timing resolver.
	Resolved              bool
	Segment               int
	RelativeT             float64
	QuantisedT            int64
	QuantisedDuration     int64
	QuantisedSamplePeriod int64

	phaseID phase.NodeID
}

// PhaseID returns the instruction's bookkeeping ID in the phase
// controller.
func (i *Instruction) PhaseID() phase.NodeID {
	return i.phaseID
}

func (i *Instruction) String() string {
	if i.Kind == ir.KindWait {
		return fmt.Sprintf("Wait(t=%v, name=%q)", i.T, i.Name)
	}
	return fmt.Sprintf("%s(t=%v, number=%d)", i.Kind, i.T, i.Number)
}

// Wait inserts a synchronization wait: the boundary between two timing
// segments. Only legal in the AddInstructions phase.
func (s *Shot) Wait(t float64, name string) (*Instruction, error) {
	return s.addInstruction(RootID, ir.KindWait, t, name, ir.Capture(1))
}

// Waits returns the shot's wait instructions in creation order.
func (s *Shot) Waits() []*Instruction {
	var waits []*Instruction
	for _, id := range s.Root().Instructions {
		waits = append(waits, s.instructions[id])
	}
	return waits
}

// Constant issues an instruction setting the output to a fixed value at
// time t. Returns the instruction's duration, which is always zero, for
// chained scheduling.
func (d *Device) Constant(t, value float64) (float64, error) {
	inst, err := d.shot.addInstruction(d.ID, ir.KindConstant, t, "", ir.Capture(1))
	if err != nil {
		return 0, err
	}
	inst.Value = value
	inst.Waveform = ConstWaveform(value)
	return 0, nil
}

// Function issues a ramp: the output follows the waveform for duration
// seconds, sampled at samplerate Hz. Returns the duration for chained
// scheduling.
func (d *Device) Function(t, duration float64, w Waveform, samplerate float64) (float64, error) {
	inst, err := d.shot.addInstruction(d.ID, ir.KindFunction, t, "", ir.Capture(1))
	if err != nil {
		return 0, err
	}
	inst.Duration = duration
	inst.SampleRate = samplerate
	inst.Waveform = w
	return duration, nil
}

// Static issues an instruction fixing the output's value for the whole
// experiment. Only legal on static outputs; the nominal time is always
// zero.
func (d *Device) Static(value float64) (*Instruction, error) {
	inst, err := d.shot.addInstruction(d.ID, ir.KindStatic, 0, "", ir.Capture(1))
	if err != nil {
		return nil, err
	}
	inst.Value = value
	inst.Waveform = ConstWaveform(value)
	return inst, nil
}

// addInstruction performs the capability-checked insertion shared by all
// instruction factories, assigns the instruction number and registers the
// exactly-once timing-resolution obligation.
func (s *Shot) addInstruction(owner DeviceID, kind ir.InstructionKind, t float64, name string, site ir.CallSite) (*Instruction, error) {
	label := fmt.Sprintf("%s[%d]", kind, s.instSeq.Current())
	if err := s.ctx.Require(phase.AddInstructions, label, "add_instruction"); err != nil {
		return nil, err
	}
	o := s.Device(owner)
	if !ir.AcceptsInstruction(o.Kind, kind) {
		return nil, illegalInstructionError(o, kind, site)
	}

	inst := &Instruction{
		ID:      InstructionID(len(s.instructions)),
		Kind:    kind,
		Owner:   owner,
		Number:  s.instSeq.Next(),
		T:       t,
		Name:    name,
		Site:    site,
		phaseID: phase.NodeID(s.nodeSeq.Next()),
	}
	s.instructions = append(s.instructions, inst)
	o.Instructions = append(o.Instructions, inst.ID)
	s.ctx.Register(inst.phaseID, inst.String(), phase.ConvertTiming, phase.OpConvertTiming)
	return inst, nil
}
