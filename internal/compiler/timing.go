package compiler

import (
	"fmt"
	"math"
	"sort"

	"github.com/shotline/shotline/internal/ir"
	"github.com/shotline/shotline/internal/phase"
	"github.com/shotline/shotline/internal/tree"
)

// ConvertTiming runs the timing-resolution pass over every instruction in
// the tree, nested pseudoclocks included.
//
// Waits are sorted by nominal time and become the segment boundaries; an
// instruction's relative time is measured from the instant its owning
// pseudoclock becomes responsive again after the most recent wait (the
// shot-wide nominal wait delay plus the shot's epsilon), and is then
// quantised to the nearest tick of that pseudoclock's timebase.
//
// The returned error is fatal (duplicate wait times, call-discipline
// violations) and aborts the pass with the phase unadvanced. Quantisation
// failures are not fatal: each aborts only its own instruction's
// resolution and all of them are collected in quantErrs so one run
// reports every unrepresentable time.
//
// Only legal in the ConvertTiming phase; exactly once per instruction.
func ConvertTiming(s *tree.Shot) (quantErrs []error, err error) {
	waits, err := sortedWaits(s)
	if err != nil {
		return nil, err
	}

	// Waits are the boundaries themselves: wait k ends segment k. They
	// carry no pseudoclock-relative time of their own.
	for i, w := range waits {
		if err := s.Phase().CallOnce(w.PhaseID(), phase.ConvertTiming, phase.OpConvertTiming); err != nil {
			return quantErrs, err
		}
		w.Segment = i + 1
		w.RelativeT = 0
		w.QuantisedT = 0
		w.Resolved = true
	}

	for _, id := range s.DescendantInstructions(tree.RootID, true) {
		inst := s.Instruction(id)
		if inst.Kind == ir.KindWait {
			continue
		}
		if err := s.Phase().CallOnce(inst.PhaseID(), phase.ConvertTiming, phase.OpConvertTiming); err != nil {
			return quantErrs, err
		}
		quantErrs = append(quantErrs, convertInstruction(s, inst, waits)...)
	}
	return quantErrs, nil
}

// sortedWaits returns the shot's waits ordered by nominal time, with
// creation order as the tie-break never needed: two waits at identical
// nominal time are a structural error.
func sortedWaits(s *tree.Shot) ([]*tree.Instruction, error) {
	waits := s.Waits()
	sort.SliceStable(waits, func(i, j int) bool { return waits[i].T < waits[j].T })
	for i := 1; i < len(waits); i++ {
		if waits[i].T == waits[i-1].T {
			return nil, &tree.StructuralError{
				Code: tree.ErrCodeDuplicateWait,
				Message: fmt.Sprintf("waits %q and %q share identical time t=%v",
					waits[i-1].Name, waits[i].Name, waits[i].T),
				Site: waits[i].Site,
			}
		}
	}
	return waits, nil
}

func convertInstruction(s *tree.Shot, inst *tree.Instruction, waits []*tree.Instruction) []error {
	owner := s.Device(inst.Owner)
	clock := s.Device(owner.Pseudoclock)
	if clock == nil {
		// Static instructions on unclocked outputs have no tick grid to
		// land on; they hold for the whole experiment from t=0.
		inst.Segment = 0
		inst.RelativeT = inst.T
		inst.QuantisedT = 0
		inst.Resolved = true
		return nil
	}

	// Segment index: the number of waits at or before the instruction's
	// nominal time.
	seg := 0
	for _, w := range waits {
		if w.T <= inst.T {
			seg++
		}
	}
	inst.Segment = seg
	inst.RelativeT = inst.T
	if seg > 0 {
		inst.RelativeT = inst.T - waits[seg-1].T - (s.NominalWaitDelay + s.Epsilon)
	}

	var errs []error
	label := fmt.Sprintf("%s on %s", inst, owner.Name)
	quantiseField := func(field string, value float64) (int64, bool) {
		ticks, nearest, ok := quantise(value, clock.Timebase, s.Tolerance)
		if !ok {
			errs = append(errs, &QuantisationError{
				Instruction: label,
				Field:       field,
				Requested:   value,
				Nearest:     nearest,
				Timebase:    clock.Timebase,
				Tolerance:   s.Tolerance,
				Site:        inst.Site,
			})
			return 0, false
		}
		return ticks, true
	}

	ok := true
	inst.QuantisedT, ok = quantiseField("t", inst.RelativeT)

	switch inst.Kind {
	case ir.KindFunction, ir.KindConstant:
		if qd, qok := quantiseField("duration", inst.Duration); qok {
			inst.QuantisedDuration = qd
		} else {
			ok = false
		}
		if inst.SampleRate > 0 {
			if qp, qok := quantiseField("sample_period", 1/inst.SampleRate); qok {
				inst.QuantisedSamplePeriod = qp
			} else {
				ok = false
			}
		}
	}

	inst.Resolved = ok && len(errs) == 0
	return errs
}

// quantise rounds value to the nearest tick of the given timebase,
// returning the tick count and the nearest representable value. ok is
// false when the value is further from the grid than tolerance (a
// fraction of the timebase) allows.
//
// Round-to-nearest is the single policy point here; callers wanting
// never-earlier-than-requested semantics pre-adjust their times.
func quantise(value, timebase, tolerance float64) (ticks int64, nearest float64, ok bool) {
	t := math.Round(value / timebase)
	nearest = t * timebase
	return int64(t), nearest, math.Abs(value-nearest) <= tolerance*timebase
}
