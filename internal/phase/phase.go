// Package phase implements the compilation phase state machine and its
// call-discipline enforcement.
//
// A Context is owned by a single shot and holds the shot's current phase,
// the registry of obligations (operations that must run exactly once on a
// node during a given phase) and the record of which obligations have
// fired. Passes consult the context before mutating anything; advancing
// the phase audits that every obligation of the phase being exited was
// met. This central enforcement is what lets downstream device code
// override per-phase hooks without being able to corrupt the global
// compilation order.
package phase

// Phase is a stage of compilation. Phases advance strictly in declaration
// order with no skipping and no going back.
type Phase int

const (
	// AddDevices is the tree-construction phase.
	AddDevices Phase = iota

	// EstablishCommonLimits is the bottom-up limit-aggregation pass.
	EstablishCommonLimits

	// EstablishInitialAttributes is the top-down attribute-propagation
	// pass.
	EstablishInitialAttributes

	// AddInstructions is the phase in which users issue instructions
	// against the configured tree.
	AddInstructions

	// ConvertTiming is the per-instruction timing-resolution pass.
	ConvertTiming

	// CheckInstructionsValid is the final consistency pass.
	CheckInstructionsValid
)

var phaseNames = map[Phase]string{
	AddDevices:                 "ADD_DEVICES",
	EstablishCommonLimits:      "ESTABLISH_COMMON_LIMITS",
	EstablishInitialAttributes: "ESTABLISH_INITIAL_ATTRIBUTES",
	AddInstructions:            "ADD_INSTRUCTIONS",
	ConvertTiming:              "CONVERT_TIMING",
	CheckInstructionsValid:     "CHECK_INSTRUCTIONS_VALID",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "UNKNOWN_PHASE"
}

// Op tags an exactly-once operation for bookkeeping purposes.
type Op string

const (
	// OpEstablishCommonLimits is the per-device limit-aggregation hook.
	OpEstablishCommonLimits Op = "establish_common_limits"

	// OpEstablishInitialAttributes is the per-device attribute-propagation
	// hook.
	OpEstablishInitialAttributes Op = "establish_initial_attributes"

	// OpConvertTiming is the per-instruction timing-resolution hook.
	OpConvertTiming Op = "convert_timing"
)
