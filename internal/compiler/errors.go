package compiler

import (
	"errors"
	"fmt"

	"github.com/shotline/shotline/internal/ir"
)

// QuantisationError reports a requested time that is not representable
// within tolerance on the owning pseudoclock's timebase. It aborts the
// offending instruction's resolution; the resolver keeps going and
// collects every such error in one batch.
type QuantisationError struct {
	Instruction string
	Field       string // "t", "duration" or "sample_period"
	Requested   float64
	Nearest     float64
	Timebase    float64
	Tolerance   float64
	Site        ir.CallSite
}

func (e *QuantisationError) Error() string {
	return fmt.Sprintf(
		"%s: %s=%v is not representable on timebase %v (nearest tick %v, tolerance %v) (created at %s)",
		e.Instruction, e.Field, e.Requested, e.Timebase, e.Nearest, e.Tolerance, e.Site)
}

// IsQuantisationError reports whether err is a QuantisationError. Uses
// errors.As to handle wrapped errors.
func IsQuantisationError(err error) bool {
	var qe *QuantisationError
	return errors.As(err, &qe)
}
