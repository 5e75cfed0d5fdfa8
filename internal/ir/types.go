package ir

// CompiledSequence is the artifact handed to hardware-specific code
// generators: per output, the ordered list of validated instructions with
// quantised times populated. It is the sole product of a compilation run.
type CompiledSequence struct {
	Name    string           `json:"name"`
	Epsilon float64          `json:"epsilon"`
	Outputs []CompiledOutput `json:"outputs"`
}

// CompiledOutput is the validated, quantised instruction list of a single
// output device.
type CompiledOutput struct {
	Device      string `json:"device"`
	Connection  string `json:"connection"`
	Pseudoclock string `json:"pseudoclock"`
	// Timebase is the owning pseudoclock's smallest representable tick,
	// in seconds. All quantised fields below are integer multiples of it.
	Timebase     float64               `json:"timebase"`
	Instructions []CompiledInstruction `json:"instructions"`
}

// CompiledInstruction is one quantised instruction. QuantisedT,
// QuantisedDuration and QuantisedSamplePeriod are tick counts on the
// owning pseudoclock's timebase.
type CompiledInstruction struct {
	Kind      string  `json:"kind"`
	Number    int64   `json:"number"`
	T         float64 `json:"t"`
	RelativeT float64 `json:"relative_t"`
	// Segment is the index of the wait-delimited segment the instruction
	// falls in; 0 is the span before the first wait.
	Segment               int      `json:"segment"`
	QuantisedT            int64    `json:"quantised_t"`
	Duration              float64  `json:"duration,omitempty"`
	QuantisedDuration     int64    `json:"quantised_duration,omitempty"`
	SampleRate            float64  `json:"samplerate,omitempty"`
	QuantisedSamplePeriod int64    `json:"quantised_sample_period,omitempty"`
	Value                 float64  `json:"value,omitempty"`
	Waveform              string   `json:"waveform,omitempty"`
	Site                  CallSite `json:"site"`
}

// InstructionCount returns the total number of instructions across all
// outputs of the sequence.
func (s *CompiledSequence) InstructionCount() int {
	n := 0
	for _, out := range s.Outputs {
		n += len(out.Instructions)
	}
	return n
}
