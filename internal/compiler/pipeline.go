package compiler

import (
	"github.com/shotline/shotline/internal/ir"
	"github.com/shotline/shotline/internal/phase"
	"github.com/shotline/shotline/internal/tree"
)

// Pipeline drives a shot through the compilation phases in order. The
// usual lifecycle is:
//
//	shot := tree.NewShot("shot", 1e-7)
//	... add devices ...
//	p := compiler.New(shot)
//	p.Start()               // limits + attributes; now ADD_INSTRUCTIONS
//	... issue instructions and waits ...
//	result, err := p.Stop() // timing + validation + artifact
//
// Any error aborts compilation with the shot's phase unadvanced; the shot
// must then be discarded, since the exactly-once bookkeeping is not
// resettable.
type Pipeline struct {
	shot *tree.Shot
}

// New creates a pipeline for the given shot.
func New(s *tree.Shot) *Pipeline {
	return &Pipeline{shot: s}
}

// Result is the outcome of a completed pipeline.
type Result struct {
	// Sequence is the compiled artifact. It is emitted whenever the
	// timing pass resolved every instruction, even if the validator found
	// violations, so tooling can show the offending quantised times.
	Sequence *ir.CompiledSequence

	// TimingErrors are the quantisation failures collected by the timing
	// resolver, one per unrepresentable time.
	TimingErrors []error

	// Violations is the validator's collected report.
	Violations []ValidationError
}

// OK reports whether compilation produced a clean, valid sequence.
func (r *Result) OK() bool {
	return r.Sequence != nil && len(r.TimingErrors) == 0 && len(r.Violations) == 0
}

// Start closes tree construction and runs the limit-aggregation and
// attribute-propagation passes, leaving the shot in the AddInstructions
// phase.
func (p *Pipeline) Start() error {
	ctx := p.shot.Phase()
	if err := ctx.Advance(phase.EstablishCommonLimits); err != nil {
		return err
	}
	if err := EstablishCommonLimits(p.shot); err != nil {
		return err
	}
	if err := ctx.Advance(phase.EstablishInitialAttributes); err != nil {
		return err
	}
	if err := EstablishInitialAttributes(p.shot); err != nil {
		return err
	}
	return ctx.Advance(phase.AddInstructions)
}

// Stop closes instruction issue, runs the timing resolver and the
// validator, and emits the compiled artifact.
//
// A returned error is fatal (structural or call-discipline) and means no
// result. Quantisation errors and validation violations are not errors
// here: they come back inside the Result so a single run reports all of
// them together.
func (p *Pipeline) Stop() (*Result, error) {
	ctx := p.shot.Phase()
	if err := ctx.Advance(phase.ConvertTiming); err != nil {
		return nil, err
	}
	quantErrs, err := ConvertTiming(p.shot)
	if err != nil {
		return nil, err
	}
	if err := ctx.Advance(phase.CheckInstructionsValid); err != nil {
		return nil, err
	}

	result := &Result{
		TimingErrors: quantErrs,
		Violations:   CheckInstructionsValid(p.shot),
	}
	if len(quantErrs) == 0 {
		result.Sequence = Emit(p.shot)
	}
	return result, nil
}
