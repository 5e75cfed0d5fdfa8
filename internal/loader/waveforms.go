package loader

import (
	"math"

	"github.com/shotline/shotline/internal/tree"
)

// builtinWaveforms are the time-to-value mappings a sequence file may
// name in a function instruction. The schema restricts the field to
// these names, so lookup failures indicate a schema/table mismatch.
var builtinWaveforms = map[string]tree.Waveform{
	"sin": {Name: "sin", Eval: math.Sin},
	"cos": {Name: "cos", Eval: math.Cos},
	"square": {Name: "square", Eval: func(t float64) float64 {
		if math.Sin(t) >= 0 {
			return 1
		}
		return -1
	}},
	"ramp": {Name: "ramp", Eval: func(t float64) float64 { return t }},
}
