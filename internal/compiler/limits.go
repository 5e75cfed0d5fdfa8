package compiler

import (
	"math"

	"github.com/shotline/shotline/internal/ir"
	"github.com/shotline/shotline/internal/phase"
	"github.com/shotline/shotline/internal/tree"
)

// floatSlack absorbs float noise when deciding whether a period is
// already an exact multiple of the timebase.
const floatSlack = 1e-9

// EstablishCommonLimits runs the bottom-up limit-aggregation pass over
// the whole tree. For each clock line it computes the slowest minimum
// period and the longest minimum trigger duration over the clockable
// devices in the line's domain; each pseudoclock then aggregates across
// its lines. Children are always visited before their parent, and
// aggregation never crosses a nested pseudoclock boundary.
//
// Only legal in the EstablishCommonLimits phase; exactly once per node.
func EstablishCommonLimits(s *tree.Shot) error {
	return establishLimits(s, s.Root())
}

func establishLimits(s *tree.Shot, d *tree.Device) error {
	// Children first: a parent's aggregate depends on its children's
	// already-established limits.
	for _, childID := range d.Children {
		if err := establishLimits(s, s.Device(childID)); err != nil {
			return err
		}
	}
	if err := s.Phase().CallOnce(d.PhaseID(), phase.EstablishCommonLimits, phase.OpEstablishCommonLimits); err != nil {
		return err
	}

	switch d.Kind {
	case ir.KindClockLine:
		establishClockLineLimits(s, d)
	case ir.KindPseudoclock:
		establishPseudoclockLimits(s, d)
	}
	return nil
}

// establishClockLineLimits aggregates over the clockable devices of the
// line's domain. The common minimum period is rounded up to the next
// multiple of the timebase, never down: a device must never receive a
// tick faster than it tolerates. The trigger duration is left
// unquantised; duty-cycle limits are a property of pulse shape, not of
// the tick grid.
func establishClockLineLimits(s *tree.Shot, line *tree.Device) {
	line.CommonMinimumPeriod = line.ClockMinimumPeriod
	line.PeriodLimitingDevice = line.ID
	line.CommonMinimumTrigger = 0
	line.TriggerLimitingDevice = tree.NoDevice

	for _, id := range s.DomainDevices(line.ID) {
		dev := s.Device(id)
		if dev.Kind != ir.KindClockableDevice {
			continue
		}
		if dev.ClockMinimumPeriod > line.CommonMinimumPeriod {
			line.CommonMinimumPeriod = dev.ClockMinimumPeriod
			line.PeriodLimitingDevice = dev.ID
		}
		if dev.ClockMinimumTrigger > line.CommonMinimumTrigger {
			line.CommonMinimumTrigger = dev.ClockMinimumTrigger
			line.TriggerLimitingDevice = dev.ID
		}
	}

	line.CommonMinimumPeriod = ceilToMultiple(line.CommonMinimumPeriod, line.Timebase)
}

// establishPseudoclockLimits aggregates across the pseudoclock's clock
// lines, whose own limits are already established.
func establishPseudoclockLimits(s *tree.Shot, clock *tree.Device) {
	clock.CommonMinimumPeriod = ceilToMultiple(clock.ClockMinimumPeriod, clock.Timebase)
	clock.PeriodLimitingDevice = clock.ID
	clock.CommonMinimumTrigger = 0
	clock.TriggerLimitingDevice = tree.NoDevice

	for _, lineID := range clock.Children {
		line := s.Device(lineID)
		if line.CommonMinimumPeriod > clock.CommonMinimumPeriod {
			clock.CommonMinimumPeriod = line.CommonMinimumPeriod
			clock.PeriodLimitingDevice = line.PeriodLimitingDevice
		}
		if line.CommonMinimumTrigger > clock.CommonMinimumTrigger {
			clock.CommonMinimumTrigger = line.CommonMinimumTrigger
			clock.TriggerLimitingDevice = line.TriggerLimitingDevice
		}
	}
}

// ceilToMultiple rounds value up to the next integer multiple of unit.
// Values already within floatSlack of a multiple are kept there rather
// than pushed a full tick up.
func ceilToMultiple(value, unit float64) float64 {
	if unit <= 0 {
		return value
	}
	ratio := value / unit
	ticks := math.Round(ratio)
	if math.Abs(ratio-ticks) <= floatSlack*math.Max(1, math.Abs(ratio)) {
		return ticks * unit
	}
	return math.Ceil(ratio) * unit
}
