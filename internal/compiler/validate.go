package compiler

import (
	"fmt"
	"sort"

	"github.com/shotline/shotline/internal/ir"
	"github.com/shotline/shotline/internal/tree"
)

// Validation error codes (E200-E299).
const (
	ErrUnresolvedInstruction = "E200" // instruction skipped by the timing resolver
	ErrInstructionInDeadTime = "E201" // instruction falls in a wait's dead time
	ErrSameTickConflict      = "E202" // two ramps on one output start at the same tick
	ErrOverlappingRamps      = "E203" // ramp tick ranges overlap on one output
	ErrNegativeDuration      = "E204" // quantised duration below zero
	ErrSampleRateTooFast     = "E205" // sample period under the domain's minimum period
	ErrTriggerDutyCycle      = "E206" // trigger duration unachievable within the clock period
)

// ValidationError is one violation found by the final consistency pass.
// The creation site of the offending instruction (or device) is attached
// so the report points at user code.
type ValidationError struct {
	Code    string      `json:"code"`
	Device  string      `json:"device"`
	Message string      `json:"message"`
	Site    ir.CallSite `json:"site"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s (created at %s)", e.Code, e.Device, e.Message, e.Site)
}

// CheckInstructionsValid runs the final consistency pass over the
// quantised tree. Unlike the earlier passes it does not fail fast: every
// violation across the whole tree is collected into a single report, so
// one compilation attempt shows the user all of its problems.
//
// Only legal in the CheckInstructionsValid phase.
func CheckInstructionsValid(s *tree.Shot) []ValidationError {
	var errs []ValidationError

	for _, id := range s.DescendantDevices(tree.RootID, true) {
		d := s.Device(id)
		switch {
		case ir.HostsInstructions(d.Kind) && d.Kind != ir.KindShot:
			errs = append(errs, checkOutput(s, d)...)
		case d.Kind == ir.KindClockLine:
			errs = append(errs, checkClockLine(s, d)...)
		}
	}
	return errs
}

// checkOutput verifies one output's quantised instructions: every
// instruction resolved, none scheduled inside a wait's dead time, no
// overlapping ramp tick ranges and no negative durations.
func checkOutput(s *tree.Shot, out *tree.Device) []ValidationError {
	var errs []ValidationError

	insts := make([]*tree.Instruction, 0, len(out.Instructions))
	for _, id := range out.Instructions {
		inst := s.Instruction(id)
		if !inst.Resolved {
			// Already reported as a QuantisationError by the resolver;
			// recorded here so the report is complete on its own.
			errs = append(errs, ValidationError{
				Code:    ErrUnresolvedInstruction,
				Device:  out.Name,
				Message: fmt.Sprintf("%s was not resolved by the timing pass", inst),
				Site:    inst.Site,
			})
			continue
		}
		if inst.RelativeT < 0 {
			msg := fmt.Sprintf("%s at relative time %v falls within the resynchronisation dead time after a wait",
				inst, inst.RelativeT)
			if inst.Segment == 0 {
				// No wait precedes segment 0; the time itself is negative.
				msg = fmt.Sprintf("%s at relative time %v is scheduled before the experiment starts",
					inst, inst.RelativeT)
			}
			errs = append(errs, ValidationError{
				Code:    ErrInstructionInDeadTime,
				Device:  out.Name,
				Message: msg,
				Site:    inst.Site,
			})
		}
		if inst.QuantisedDuration < 0 {
			errs = append(errs, ValidationError{
				Code:    ErrNegativeDuration,
				Device:  out.Name,
				Message: fmt.Sprintf("%s has negative quantised duration %d", inst, inst.QuantisedDuration),
				Site:    inst.Site,
			})
		}
		insts = append(insts, inst)
	}

	// Same-segment instructions ordered by tick, creation order as the
	// deterministic tie-break.
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

	// Overlap rules apply to ramps only. Point instructions may share a
	// tick with each other or with a ramp; the ordering above decides
	// which value wins.
	var ramps []*tree.Instruction
	for _, inst := range insts {
		if inst.QuantisedDuration > 0 {
			ramps = append(ramps, inst)
		}
	}
	for i := 1; i < len(ramps); i++ {
		prev, cur := ramps[i-1], ramps[i]
		if prev.Segment != cur.Segment {
			continue
		}
		if prev.QuantisedT == cur.QuantisedT {
			errs = append(errs, ValidationError{
				Code:   ErrSameTickConflict,
				Device: out.Name,
				Message: fmt.Sprintf("%s and %s both start at tick %d",
					prev, cur, cur.QuantisedT),
				Site: cur.Site,
			})
			continue
		}
		if prev.QuantisedT+prev.QuantisedDuration > cur.QuantisedT {
			errs = append(errs, ValidationError{
				Code:   ErrOverlappingRamps,
				Device: out.Name,
				Message: fmt.Sprintf("%s (ticks %d..%d) overlaps %s at tick %d",
					prev, prev.QuantisedT, prev.QuantisedT+prev.QuantisedDuration, cur, cur.QuantisedT),
				Site: cur.Site,
			})
		}
	}

	// Ramps must not be sampled faster than the slowest device in the
	// clock domain tolerates.
	if line := owningClockLine(s, out); line != nil {
		for _, inst := range insts {
			if inst.Kind != ir.KindFunction || inst.SampleRate <= 0 {
				continue
			}
			period := float64(inst.QuantisedSamplePeriod) * line.Timebase
			if period < line.CommonMinimumPeriod {
				limiter := s.Device(line.PeriodLimitingDevice)
				errs = append(errs, ValidationError{
					Code:   ErrSampleRateTooFast,
					Device: out.Name,
					Message: fmt.Sprintf("%s sample period %v is below the clock domain's minimum period %v (limited by %s)",
						inst, period, line.CommonMinimumPeriod, limiter.Name),
					Site: inst.Site,
				})
			}
		}
	}

	return errs
}

// checkClockLine verifies the line's aggregated limits are achievable:
// the clock must fit a trigger pulse of the common minimum duration,
// high and low, inside one common minimum period.
func checkClockLine(s *tree.Shot, line *tree.Device) []ValidationError {
	if line.CommonMinimumTrigger*2 <= line.CommonMinimumPeriod {
		return nil
	}
	limiter := line
	if line.TriggerLimitingDevice != tree.NoDevice {
		limiter = s.Device(line.TriggerLimitingDevice)
	}
	return []ValidationError{{
		Code:   ErrTriggerDutyCycle,
		Device: line.Name,
		Message: fmt.Sprintf("minimum trigger duration %v (required by %s) cannot fit twice in the clock period %v",
			line.CommonMinimumTrigger, limiter.Name, line.CommonMinimumPeriod),
		Site: limiter.Site,
	}}
}

// owningClockLine walks up from an output to the clock line driving it,
// or nil for unclocked outputs.
func owningClockLine(s *tree.Shot, d *tree.Device) *tree.Device {
	for cur := d; cur != nil; cur = s.Device(cur.Parent) {
		if cur.Kind == ir.KindClockLine {
			return cur
		}
	}
	return nil
}
