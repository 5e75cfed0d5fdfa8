package compiler

import (
	"github.com/shotline/shotline/internal/ir"
	"github.com/shotline/shotline/internal/phase"
	"github.com/shotline/shotline/internal/tree"
)

// EstablishInitialAttributes runs the top-down attribute-propagation
// pass: every node computes its start offset and cumulative upstream
// latency from its parent's already-finalised values, parents strictly
// before children. The shot-wide nominal wait delay (the dead time that
// satisfies every pseudoclock in the tree) is computed once at the root.
//
// This pass must not touch anything the limit aggregator finalised.
// Only legal in the EstablishInitialAttributes phase; exactly once per
// node.
func EstablishInitialAttributes(s *tree.Shot) error {
	s.NominalWaitDelay = nominalWaitDelay(s)
	return establishAttributes(s, s.Root())
}

func establishAttributes(s *tree.Shot, d *tree.Device) error {
	if err := s.Phase().CallOnce(d.PhaseID(), phase.EstablishInitialAttributes, phase.OpEstablishInitialAttributes); err != nil {
		return err
	}

	if parent := s.Device(d.Parent); parent != nil {
		d.T0 = parent.T0 + parent.OutputDelay
		d.CumLatency = parent.CumLatency + parent.OutputDelay
		// An explicit initial trigger time overrides the as-early-as-
		// possible default for a pseudoclock device.
		if d.Kind == ir.KindPseudoclockDevice && d.HasInitialTriggerTime {
			d.T0 = d.InitialTriggerTime
		}
	}

	for _, childID := range d.Children {
		if err := establishAttributes(s, s.Device(childID)); err != nil {
			return err
		}
	}
	return nil
}

// nominalWaitDelay returns the maximum wait delay over every pseudoclock
// in the tree, nested ones included: the one dead time long enough for
// all of them.
func nominalWaitDelay(s *tree.Shot) float64 {
	delay := 0.0
	for _, id := range s.DescendantDevices(tree.RootID, true) {
		d := s.Device(id)
		if d.Kind == ir.KindPseudoclock && d.WaitDelay > delay {
			delay = d.WaitDelay
		}
	}
	return delay
}
