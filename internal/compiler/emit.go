package compiler

import (
	"sort"
	"strings"

	"github.com/shotline/shotline/internal/ir"
	"github.com/shotline/shotline/internal/tree"
)

// Emit builds the compiled artifact: per output, the ordered list of
// quantised instructions, ready for hardware-specific instruction-word
// encoding downstream. Call after the validator has run.
func Emit(s *tree.Shot) *ir.CompiledSequence {
	seq := &ir.CompiledSequence{
		Name:    s.Name(),
		Epsilon: s.Epsilon,
	}

	for _, id := range s.DescendantDevices(tree.RootID, true) {
		d := s.Device(id)
		if !ir.HostsInstructions(d.Kind) {
			continue
		}
		seq.Outputs = append(seq.Outputs, emitOutput(s, d))
	}
	return seq
}

func emitOutput(s *tree.Shot, d *tree.Device) ir.CompiledOutput {
	out := ir.CompiledOutput{
		Device:     d.Name,
		Connection: d.Connection,
	}
	if clock := s.Device(d.Pseudoclock); clock != nil {
		out.Pseudoclock = clock.Name
		out.Timebase = clock.Timebase
	}

	insts := make([]*tree.Instruction, 0, len(d.Instructions))
	for _, id := range d.Instructions {
		insts = append(insts, s.Instruction(id))
	}
	sort.SliceStable(insts, func(i, j int) bool {
		a, b := insts[i], insts[j]
		if a.Segment != b.Segment {
			return a.Segment < b.Segment
		}
		if a.QuantisedT != b.QuantisedT {
			return a.QuantisedT < b.QuantisedT
		}
		return a.Number < b.Number
	})

	out.Instructions = make([]ir.CompiledInstruction, len(insts))
	for i, inst := range insts {
		out.Instructions[i] = ir.CompiledInstruction{
			Kind:                  strings.ToLower(inst.Kind.String()),
			Number:                inst.Number,
			T:                     inst.T,
			RelativeT:             inst.RelativeT,
			Segment:               inst.Segment,
			QuantisedT:            inst.QuantisedT,
			Duration:              inst.Duration,
			QuantisedDuration:     inst.QuantisedDuration,
			SampleRate:            inst.SampleRate,
			QuantisedSamplePeriod: inst.QuantisedSamplePeriod,
			Value:                 inst.Value,
			Waveform:              inst.Waveform.Name,
			Site:                  inst.Site,
		}
	}
	return out
}
