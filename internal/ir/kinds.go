package ir

// DeviceKind identifies a device variant. The set of variants is closed:
// composition rules are expressed as static tables over these tags rather
// than as a type hierarchy.
type DeviceKind int

const (
	// KindShot is the root node of the entity tree. There is exactly one
	// per compilation and it is node 0 of its shot's arena.
	KindShot DeviceKind = iota

	// KindStaticDevice is a device whose outputs do not change during the
	// experiment and which therefore needs no clock or trigger.
	KindStaticDevice

	// KindTriggerableDevice is a device that must receive a trigger pulse
	// of at least its minimum trigger duration to be latched.
	KindTriggerableDevice

	// KindClockableDevice is a triggerable device that additionally
	// requires a minimum period between clock ticks.
	KindClockableDevice

	// KindClockLine groups clockable devices under one physical clock
	// signal of a pseudoclock.
	KindClockLine

	// KindPseudoclock is a clock source with a timebase (smallest
	// representable tick) and a wait delay (dead time after a wait before
	// it responds to a trigger again).
	KindPseudoclock

	// KindPseudoclockDevice is the physical box containing one or more
	// pseudoclocks, triggered by the shot (master) or a parent trigger.
	KindPseudoclockDevice

	// KindOutput is a device that owns instructions.
	KindOutput

	// KindTrigger is an output dedicated to triggering downstream
	// triggerable devices.
	KindTrigger

	// KindStaticOutput is an output restricted to static instructions.
	KindStaticOutput
)

var deviceKindNames = map[DeviceKind]string{
	KindShot:              "Shot",
	KindStaticDevice:      "StaticDevice",
	KindTriggerableDevice: "TriggerableDevice",
	KindClockableDevice:   "ClockableDevice",
	KindClockLine:         "ClockLine",
	KindPseudoclock:       "Pseudoclock",
	KindPseudoclockDevice: "PseudoclockDevice",
	KindOutput:            "Output",
	KindTrigger:           "Trigger",
	KindStaticOutput:      "StaticOutput",
}

func (k DeviceKind) String() string {
	if name, ok := deviceKindNames[k]; ok {
		return name
	}
	return "UnknownDevice"
}

// InstructionKind identifies an instruction variant.
type InstructionKind int

const (
	// KindWait is a segment boundary, owned by the shot.
	KindWait InstructionKind = iota

	// KindFunction is a ramp: duration, a time-to-value mapping and a
	// sample rate.
	KindFunction

	// KindConstant is a degenerate function: zero duration, zero sample
	// rate, evaluating to a fixed value.
	KindConstant

	// KindStatic sets an unchanging output's value for the whole
	// experiment; always at nominal time zero.
	KindStatic
)

var instructionKindNames = map[InstructionKind]string{
	KindWait:     "Wait",
	KindFunction: "Function",
	KindConstant: "Constant",
	KindStatic:   "Static",
}

func (k InstructionKind) String() string {
	if name, ok := instructionKindNames[k]; ok {
		return name
	}
	return "UnknownInstruction"
}

// acceptedChildren maps each device kind to the set of device kinds it
// accepts as children. A kind absent from the table accepts no children.
//
// Trigger targets are listed explicitly: a trigger drives triggerable
// devices, which includes the clockable and pseudoclock-device variants.
var acceptedChildren = map[DeviceKind]map[DeviceKind]bool{
	KindShot: {
		KindPseudoclockDevice: true,
		KindStaticDevice:      true,
	},
	KindStaticDevice: {
		KindStaticOutput: true,
	},
	KindPseudoclockDevice: {
		KindPseudoclock: true,
	},
	KindPseudoclock: {
		KindClockLine: true,
	},
	KindClockLine: {
		KindClockableDevice: true,
	},
	KindClockableDevice: {
		KindOutput:       true,
		KindTrigger:      true,
		KindStaticOutput: true,
	},
	KindOutput: {
		KindOutput:       true,
		KindTrigger:      true,
		KindStaticOutput: true,
	},
	KindTrigger: {
		KindTriggerableDevice: true,
		KindClockableDevice:   true,
		KindPseudoclockDevice: true,
	},
}

// acceptedInstructions maps each instruction-hosting kind to the set of
// instruction kinds it accepts. Kinds absent from the table host no
// instructions at all.
var acceptedInstructions = map[DeviceKind]map[InstructionKind]bool{
	KindShot: {
		KindWait: true,
	},
	KindOutput: {
		KindFunction: true,
		KindConstant: true,
	},
	KindTrigger: {
		KindFunction: true,
		KindConstant: true,
	},
	KindStaticOutput: {
		KindStatic: true,
	},
}

// AcceptsChild reports whether a device of kind parent may own a child
// device of kind child.
func AcceptsChild(parent, child DeviceKind) bool {
	return acceptedChildren[parent][child]
}

// AcceptedChildren returns the child kinds a device of the given kind
// accepts, in a stable order. Used for error messages.
func AcceptedChildren(parent DeviceKind) []DeviceKind {
	var kinds []DeviceKind
	for k := KindShot; k <= KindStaticOutput; k++ {
		if acceptedChildren[parent][k] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// AcceptsInstruction reports whether a device of kind owner may own an
// instruction of kind inst.
func AcceptsInstruction(owner DeviceKind, inst InstructionKind) bool {
	return acceptedInstructions[owner][inst]
}

// AcceptedInstructions returns the instruction kinds a device of the given
// kind accepts, in a stable order.
func AcceptedInstructions(owner DeviceKind) []InstructionKind {
	var kinds []InstructionKind
	for k := KindWait; k <= KindStatic; k++ {
		if acceptedInstructions[owner][k] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// HostsInstructions reports whether the kind can own instructions at all.
func HostsInstructions(k DeviceKind) bool {
	return len(acceptedInstructions[k]) > 0
}
