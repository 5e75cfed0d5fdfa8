package tree

import (
	"errors"
	"fmt"

	"github.com/shotline/shotline/internal/ir"
)

// Structural error codes (E110-E119).
const (
	ErrCodeIllegalChild       = "E110" // child kind not in parent's accepted set
	ErrCodeIllegalInstruction = "E111" // instruction kind not in owner's accepted set
	ErrCodeDuplicateMaster    = "E112" // second master pseudoclock device on shot
	ErrCodeDuplicateName      = "E113" // device name already in use
	ErrCodeUnknownParent      = "E114" // parent ID not in the shot's arena
	ErrCodeDuplicateWait      = "E115" // two waits at identical nominal time
)

// StructuralError reports an illegal device/instruction composition. It
// is raised immediately at the call that violates it and never recovered
// automatically.
type StructuralError struct {
	Code    string
	Message string
	// Site is the creation site of the offending node, when one was
	// captured before the violation was detected.
	Site ir.CallSite
}

func (e *StructuralError) Error() string {
	if e.Site.IsValid() {
		return fmt.Sprintf("[%s] %s (created at %s)", e.Code, e.Message, e.Site)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// IsStructuralError reports whether err is a StructuralError. Uses
// errors.As to handle wrapped errors.
func IsStructuralError(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

func illegalChildError(parent *Device, childKind ir.DeviceKind, site ir.CallSite) *StructuralError {
	return &StructuralError{
		Code: ErrCodeIllegalChild,
		Message: fmt.Sprintf("device of type %s not permitted as child of %s %q (accepts %v)",
			childKind, parent.Kind, parent.Name, ir.AcceptedChildren(parent.Kind)),
		Site: site,
	}
}

func illegalInstructionError(owner *Device, instKind ir.InstructionKind, site ir.CallSite) *StructuralError {
	return &StructuralError{
		Code: ErrCodeIllegalInstruction,
		Message: fmt.Sprintf("instruction of type %s not permitted by %s %q (accepts %v)",
			instKind, owner.Kind, owner.Name, ir.AcceptedInstructions(owner.Kind)),
		Site: site,
	}
}
