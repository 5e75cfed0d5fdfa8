package tree

import (
	"github.com/shotline/shotline/internal/ir"
	"github.com/shotline/shotline/internal/phase"
)

// DeviceID is an index into a shot's device arena.
type DeviceID int64

// NoDevice marks an absent device reference (e.g. the pseudoclock of a
// static device).
const NoDevice DeviceID = -1

// Device is a node of the entity tree. The variant-specific behaviour is
// carried by Kind; fields not applicable to a kind are zero and ignored.
//
// Parent, Pseudoclock and the shot binding are fixed at construction and
// never reassigned.
type Device struct {
	ID         DeviceID
	Kind       ir.DeviceKind
	Name       string
	Connection string
	Parent     DeviceID
	// Pseudoclock is the owning pseudoclock: the device itself for a
	// pseudoclock, the parent's pseudoclock otherwise, NoDevice above any
	// clock.
	Pseudoclock  DeviceID
	Children     []DeviceID
	Instructions []InstructionID
	Site         ir.CallSite

	// Declared hardware limits, set by the variant constructors.
	MinimumTrigger      float64 // TriggerableDevice, PseudoclockDevice
	ClockMinimumTrigger float64 // ClockableDevice
	ClockMinimumPeriod  float64 // ClockableDevice, Pseudoclock
	Timebase            float64 // Pseudoclock; copied onto its clock lines
	WaitDelay           float64 // Pseudoclock
	// OutputDelay is the time between this device receiving a trigger or
	// clock tick and providing output to a child. Zero for top-level
	// devices.
	OutputDelay float64

	// InitialTriggerTime optionally pins when a pseudoclock device is
	// triggered by its parent; unset means as early as possible.
	InitialTriggerTime    float64
	HasInitialTriggerTime bool

	// Computed by the limit aggregator on clock lines and pseudoclocks.
	CommonMinimumPeriod   float64
	CommonMinimumTrigger  float64
	PeriodLimitingDevice  DeviceID
	TriggerLimitingDevice DeviceID

	// Computed by the attribute propagator.
	T0         float64
	CumLatency float64

	phaseID phase.NodeID
	shot    *Shot
}

// Shot returns the shot owning this device.
func (d *Device) Shot() *Shot {
	return d.shot
}

// PhaseID returns the device's bookkeeping ID in the phase controller.
func (d *Device) PhaseID() phase.NodeID {
	return d.phaseID
}

// deviceConfig carries the variant-specific construction parameters.
type deviceConfig struct {
	minimumTrigger      float64
	clockMinimumTrigger float64
	clockMinimumPeriod  float64
	timebase            float64
	waitDelay           float64
	outputDelay         float64
}

// PseudoclockConfig declares a pseudoclock's timing capabilities.
type PseudoclockConfig struct {
	// ClockMinimumPeriod is the shortest clock period the device can
	// produce, in seconds. Must itself be representable on the timebase.
	ClockMinimumPeriod float64

	// WaitDelay is the dead time after a wait instruction before the
	// pseudoclock responds to a trigger again.
	WaitDelay float64

	// Timebase is the smallest representable tick. All quantised times of
	// the clock domain are integer multiples of it.
	Timebase float64
}

// NewStaticDevice adds a device whose outputs are fixed for the whole
// experiment; it requires no clock and no trigger.
func (s *Shot) NewStaticDevice(name string, parent DeviceID, connection string) (*Device, error) {
	return s.addDevice(ir.KindStaticDevice, name, parent, connection, ir.Capture(1), deviceConfig{})
}

// NewTriggerableDevice adds a device that requires a trigger pulse of at
// least minimumTrigger seconds to be latched.
func (s *Shot) NewTriggerableDevice(name string, parent DeviceID, connection string, minimumTrigger float64) (*Device, error) {
	return s.addDevice(ir.KindTriggerableDevice, name, parent, connection, ir.Capture(1), deviceConfig{
		minimumTrigger: minimumTrigger,
	})
}

// NewClockableDevice adds a device clocked by a clock line. It requires
// clock pulses of at least clockMinimumTrigger seconds and at least
// clockMinimumPeriod seconds apart.
func (s *Shot) NewClockableDevice(name string, parent DeviceID, connection string, clockMinimumTrigger, clockMinimumPeriod float64) (*Device, error) {
	return s.addDevice(ir.KindClockableDevice, name, parent, connection, ir.Capture(1), deviceConfig{
		clockMinimumTrigger: clockMinimumTrigger,
		clockMinimumPeriod:  clockMinimumPeriod,
	})
}

// NewClockLine adds a clock line grouping clockable devices under one
// physical clock signal of a pseudoclock. The line inherits the parent
// pseudoclock's timebase and minimum period as its starting limits.
func (s *Shot) NewClockLine(name string, parent DeviceID, connection string) (*Device, error) {
	d, err := s.addDevice(ir.KindClockLine, name, parent, connection, ir.Capture(1), deviceConfig{})
	if err != nil {
		return nil, err
	}
	p := s.Device(parent)
	d.Timebase = p.Timebase
	d.ClockMinimumPeriod = p.ClockMinimumPeriod
	return d, nil
}

// NewPseudoclock adds a clock source under a pseudoclock device.
func (s *Shot) NewPseudoclock(name string, parent DeviceID, connection string, cfg PseudoclockConfig) (*Device, error) {
	return s.addDevice(ir.KindPseudoclock, name, parent, connection, ir.Capture(1), deviceConfig{
		clockMinimumPeriod: cfg.ClockMinimumPeriod,
		waitDelay:          cfg.WaitDelay,
		timebase:           cfg.Timebase,
	})
}

// NewPseudoclockDevice adds the physical box containing pseudoclocks.
// Directly under the shot it becomes the master clock source; the shot
// accepts at most one.
func (s *Shot) NewPseudoclockDevice(name string, parent DeviceID, connection string, minimumTrigger float64) (*Device, error) {
	return s.addDevice(ir.KindPseudoclockDevice, name, parent, connection, ir.Capture(1), deviceConfig{
		minimumTrigger: minimumTrigger,
	})
}

// NewOutput adds an output device, which owns instructions.
func (s *Shot) NewOutput(name string, parent DeviceID, connection string) (*Device, error) {
	return s.addDevice(ir.KindOutput, name, parent, connection, ir.Capture(1), deviceConfig{})
}

// NewTrigger adds an output dedicated to triggering downstream
// triggerable devices.
func (s *Shot) NewTrigger(name string, parent DeviceID, connection string) (*Device, error) {
	return s.addDevice(ir.KindTrigger, name, parent, connection, ir.Capture(1), deviceConfig{})
}

// NewStaticOutput adds an output restricted to static instructions.
func (s *Shot) NewStaticOutput(name string, parent DeviceID, connection string) (*Device, error) {
	return s.addDevice(ir.KindStaticOutput, name, parent, connection, ir.Capture(1), deviceConfig{})
}

// SetInitialTriggerTime pins when this pseudoclock device is triggered by
// its parent. Only meaningful on pseudoclock devices, and only before the
// attribute propagator runs.
func (d *Device) SetInitialTriggerTime(t float64) error {
	if err := d.shot.ctx.Require(phase.AddDevices, d.Name, "set_initial_trigger_time"); err != nil {
		return err
	}
	d.InitialTriggerTime = t
	d.HasInitialTriggerTime = true
	return nil
}

// SetOutputDelay declares the device's output delay to its children.
func (d *Device) SetOutputDelay(delay float64) error {
	if err := d.shot.ctx.Require(phase.AddDevices, d.Name, "set_output_delay"); err != nil {
		return err
	}
	d.OutputDelay = delay
	return nil
}
