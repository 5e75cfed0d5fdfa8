package ir

import (
	"fmt"
	"runtime"
)

// CallSite records where in user code a node was created. It is captured
// at construction time and attached to every error that concerns the node
// later in compilation, so diagnostics point at the line that issued the
// instruction rather than at compiler internals.
type CallSite struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Func string `json:"func,omitempty"`
}

// Capture records the call site skip+1 frames above the caller.
//
// skip=0 attributes the site to Capture's direct caller. Factory helpers
// that wrap node construction pass their own skip+1 so the site lands in
// the code that called the helper, not in the helper itself.
func Capture(skip int) CallSite {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return CallSite{}
	}
	site := CallSite{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		site.Func = fn.Name()
	}
	return site
}

// IsValid reports whether the site was successfully captured.
func (s CallSite) IsValid() bool {
	return s.File != ""
}

func (s CallSite) String() string {
	if !s.IsValid() {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}
