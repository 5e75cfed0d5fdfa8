package tree

import (
	"fmt"

	"github.com/shotline/shotline/internal/ir"
	"github.com/shotline/shotline/internal/phase"
)

// RootID is the arena index of the shot's own node.
const RootID DeviceID = 0

// DefaultTolerance is the default quantisation tolerance, as a fraction
// of the owning pseudoclock's timebase.
const DefaultTolerance = 0.01

// Shot is the root of the entity tree and the owner of all compilation
// state: the device and instruction arenas, the phase controller, the
// instruction counter and the master clock source. One shot corresponds
// to one compilation run; a shot whose compilation failed must be
// discarded, not reused.
//
// Shot state is never shared between shots and never touched by more
// than one goroutine; compilation is a single deterministic batch pass.
type Shot struct {
	// Epsilon is the shot-wide safety margin added to the wait dead time
	// when resolving post-wait instruction times.
	Epsilon float64

	// Tolerance is the quantisation tolerance as a fraction of the
	// timebase; requested times further than this from the nearest tick
	// fail with a QuantisationError.
	Tolerance float64

	// NominalWaitDelay is the wait dead time that satisfies every
	// pseudoclock in the tree. Computed once by the attribute propagator.
	NominalWaitDelay float64

	name         string
	ctx          *phase.Context
	devices      []*Device
	instructions []*Instruction
	byName       map[string]DeviceID
	master       DeviceID
	nodeSeq      *Counter
	instSeq      *Counter
}

// NewShot creates the root of a new entity tree in the AddDevices phase.
// epsilon is the shot-wide post-wait safety margin in seconds.
func NewShot(name string, epsilon float64) *Shot {
	s := &Shot{
		Epsilon:   epsilon,
		Tolerance: DefaultTolerance,
		name:      name,
		ctx:       phase.NewContext(),
		byName:    make(map[string]DeviceID),
		master:    NoDevice,
		nodeSeq:   NewCounter(),
		instSeq:   NewCounter(),
	}
	root := &Device{
		ID:          RootID,
		Kind:        ir.KindShot,
		Name:        name,
		Parent:      NoDevice,
		Pseudoclock: NoDevice,
		Site:        ir.Capture(1),
		phaseID:     phase.NodeID(s.nodeSeq.Next()),
		shot:        s,
	}
	s.devices = append(s.devices, root)
	s.byName[name] = RootID
	s.registerPassObligations(root)
	return s
}

// Name returns the shot's name.
func (s *Shot) Name() string {
	return s.name
}

// Phase returns the shot's phase controller.
func (s *Shot) Phase() *phase.Context {
	return s.ctx
}

// Root returns the shot's own node.
func (s *Shot) Root() *Device {
	return s.devices[RootID]
}

// Device returns the device with the given arena ID, or nil if the ID is
// out of range.
func (s *Shot) Device(id DeviceID) *Device {
	if id < 0 || int(id) >= len(s.devices) {
		return nil
	}
	return s.devices[id]
}

// DeviceByName returns the device with the given name.
func (s *Shot) DeviceByName(name string) (*Device, bool) {
	id, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.devices[id], true
}

// Devices returns the number of devices in the arena, including the
// shot's own node.
func (s *Shot) Devices() int {
	return len(s.devices)
}

// Instruction returns the instruction with the given arena ID, or nil.
func (s *Shot) Instruction(id InstructionID) *Instruction {
	if id < 0 || int(id) >= len(s.instructions) {
		return nil
	}
	return s.instructions[id]
}

// TotalInstructions returns how many instructions have been created.
func (s *Shot) TotalInstructions() int64 {
	return s.instSeq.Current()
}

// MasterPseudoclockDevice returns the shot's master clock source, or nil
// if none was added.
func (s *Shot) MasterPseudoclockDevice() *Device {
	if s.master == NoDevice {
		return nil
	}
	return s.devices[s.master]
}

// addDevice performs the capability-checked insertion shared by all
// device constructors. It binds parent, shot and owning pseudoclock,
// appends the child in insertion order and registers the child's
// per-phase obligations.
func (s *Shot) addDevice(kind ir.DeviceKind, name string, parent DeviceID, connection string, site ir.CallSite, cfg deviceConfig) (*Device, error) {
	if err := s.ctx.Require(phase.AddDevices, name, "add_device"); err != nil {
		return nil, err
	}
	p := s.Device(parent)
	if p == nil {
		return nil, &StructuralError{
			Code:    ErrCodeUnknownParent,
			Message: fmt.Sprintf("parent %d of device %q is not in this shot's tree", parent, name),
			Site:    site,
		}
	}
	if !ir.AcceptsChild(p.Kind, kind) {
		return nil, illegalChildError(p, kind, site)
	}
	if _, taken := s.byName[name]; taken {
		return nil, &StructuralError{
			Code:    ErrCodeDuplicateName,
			Message: fmt.Sprintf("device name %q already in use", name),
			Site:    site,
		}
	}
	if kind == ir.KindPseudoclockDevice && parent == RootID && s.master != NoDevice {
		return nil, &StructuralError{
			Code: ErrCodeDuplicateMaster,
			Message: fmt.Sprintf("cannot add second master pseudoclock device %q: already have %q",
				name, s.devices[s.master].Name),
			Site: site,
		}
	}

	d := &Device{
		ID:                  DeviceID(len(s.devices)),
		Kind:                kind,
		Name:                name,
		Connection:          connection,
		Parent:              parent,
		Site:                site,
		MinimumTrigger:      cfg.minimumTrigger,
		ClockMinimumTrigger: cfg.clockMinimumTrigger,
		ClockMinimumPeriod:  cfg.clockMinimumPeriod,
		Timebase:            cfg.timebase,
		WaitDelay:           cfg.waitDelay,
		OutputDelay:         cfg.outputDelay,
		phaseID:             phase.NodeID(s.nodeSeq.Next()),
		shot:                s,
	}
	// A pseudoclock is its own clock domain; everything else inherits the
	// parent's.
	if kind == ir.KindPseudoclock {
		d.Pseudoclock = d.ID
	} else {
		d.Pseudoclock = p.Pseudoclock
	}

	s.devices = append(s.devices, d)
	s.byName[name] = d.ID
	p.Children = append(p.Children, d.ID)
	if kind == ir.KindPseudoclockDevice && parent == RootID {
		s.master = d.ID
	}
	s.registerPassObligations(d)
	return d, nil
}

// registerPassObligations records the exactly-once hooks every device
// node owes to the limit-aggregation and attribute-propagation phases.
func (s *Shot) registerPassObligations(d *Device) {
	s.ctx.Register(d.phaseID, d.Name, phase.EstablishCommonLimits, phase.OpEstablishCommonLimits)
	s.ctx.Register(d.phaseID, d.Name, phase.EstablishInitialAttributes, phase.OpEstablishInitialAttributes)
}
