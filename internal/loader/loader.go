// Package loader turns YAML sequence descriptions into entity trees
// ready for compilation. Documents are validated against an embedded CUE
// schema before any tree is built, so structural mistakes in the file are
// reported with field-level positions rather than surfacing later as
// compilation errors.
package loader

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/shotline/shotline/internal/compiler"
	"github.com/shotline/shotline/internal/tree"
)

//go:embed schema.cue
var schemaCUE string

// Load error codes (E001-E099).
const (
	ErrCodeGeneric       = "E001" // generic/unknown error
	ErrCodeReadFailed    = "E002" // file not readable
	ErrCodeParseFailed   = "E003" // YAML syntax error
	ErrCodeSchemaInvalid = "E004" // document rejected by the CUE schema
	ErrCodeUnknownParent = "E005" // device parent not declared earlier
	ErrCodeUnknownOutput = "E006" // instruction names an unknown output
	ErrCodeBadWaveform   = "E007" // function waveform not a builtin
)

// LoadError reports a problem with a sequence description file.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Document is a decoded sequence description.
type Document struct {
	Name         string            `yaml:"name"`
	Epsilon      float64           `yaml:"epsilon"`
	Tolerance    float64           `yaml:"tolerance"`
	Devices      []DeviceDecl      `yaml:"devices"`
	Instructions []InstructionDecl `yaml:"instructions"`
}

// DeviceDecl declares one device. Parents must be declared before their
// children; the shot itself is named "shot".
type DeviceDecl struct {
	Name                string   `yaml:"name"`
	Kind                string   `yaml:"kind"`
	Parent              string   `yaml:"parent"`
	Connection          string   `yaml:"connection"`
	MinimumTrigger      float64  `yaml:"minimum_trigger"`
	ClockMinimumTrigger float64  `yaml:"clock_minimum_trigger"`
	ClockMinimumPeriod  float64  `yaml:"clock_minimum_period"`
	Timebase            float64  `yaml:"timebase"`
	WaitDelay           float64  `yaml:"wait_delay"`
	OutputDelay         float64  `yaml:"output_delay"`
	InitialTriggerTime  *float64 `yaml:"initial_trigger_time"`
}

// InstructionDecl declares one instruction against a named output, or a
// wait against the shot.
type InstructionDecl struct {
	Kind       string  `yaml:"kind"`
	Output     string  `yaml:"output"`
	T          float64 `yaml:"t"`
	Name       string  `yaml:"name"`
	Value      float64 `yaml:"value"`
	Duration   float64 `yaml:"duration"`
	Function   string  `yaml:"function"`
	SampleRate float64 `yaml:"samplerate"`
}

// LoadFile reads, validates and builds the sequence described by a YAML
// file. On success the returned pipeline has already run Start(): the
// tree is configured, all instructions are issued and the shot sits in
// the ConvertTiming-ready state. The caller finishes compilation with
// pipeline.Stop().
func LoadFile(path string) (*tree.Shot, *compiler.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	return Load(data)
}

// Load is LoadFile for in-memory documents.
func Load(data []byte) (*tree.Shot, *compiler.Pipeline, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, nil, err
	}
	return build(doc)
}

// decode parses the YAML and validates the raw document against the
// embedded CUE schema before committing to typed structs.
func decode(data []byte) (*Document, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("parsing YAML: %v", err)}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("compiling schema: %v", err)}
	}
	value := ctx.Encode(raw)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("encoding document: %v", err)}
	}
	unified := schema.Unify(value)
	if err := unified.Validate(cue.Final()); err != nil {
		return nil, &LoadError{Code: ErrCodeSchemaInvalid, Message: describeSchemaErrors(err)}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("decoding document: %v", err)}
	}
	return &doc, nil
}

// describeSchemaErrors flattens CUE's error list into one message with
// every field problem, not just the first.
func describeSchemaErrors(err error) string {
	var buf bytes.Buffer
	buf.WriteString("sequence does not match schema:")
	for _, e := range cueerrors.Errors(err) {
		buf.WriteString("\n  ")
		buf.WriteString(e.Error())
	}
	return buf.String()
}

// build constructs the entity tree, starts the pipeline and issues the
// declared instructions.
func build(doc *Document) (*tree.Shot, *compiler.Pipeline, error) {
	shot := tree.NewShot(doc.Name, doc.Epsilon)
	if doc.Tolerance > 0 {
		shot.Tolerance = doc.Tolerance
	}

	for _, decl := range doc.Devices {
		if err := addDevice(shot, decl); err != nil {
			return nil, nil, err
		}
	}

	pipeline := compiler.New(shot)
	if err := pipeline.Start(); err != nil {
		return nil, nil, err
	}

	for _, decl := range doc.Instructions {
		if err := addInstruction(shot, decl); err != nil {
			return nil, nil, err
		}
	}
	return shot, pipeline, nil
}

func addDevice(shot *tree.Shot, decl DeviceDecl) error {
	parentID := tree.RootID
	if decl.Parent != "" && decl.Parent != "shot" {
		parent, ok := shot.DeviceByName(decl.Parent)
		if !ok {
			return &LoadError{
				Code:    ErrCodeUnknownParent,
				Message: fmt.Sprintf("device %q: parent %q not declared before it", decl.Name, decl.Parent),
			}
		}
		parentID = parent.ID
	}

	var d *tree.Device
	var err error
	switch decl.Kind {
	case "static_device":
		d, err = shot.NewStaticDevice(decl.Name, parentID, decl.Connection)
	case "triggerable_device":
		d, err = shot.NewTriggerableDevice(decl.Name, parentID, decl.Connection, decl.MinimumTrigger)
	case "clockable_device":
		d, err = shot.NewClockableDevice(decl.Name, parentID, decl.Connection, decl.ClockMinimumTrigger, decl.ClockMinimumPeriod)
	case "clock_line":
		d, err = shot.NewClockLine(decl.Name, parentID, decl.Connection)
	case "pseudoclock":
		d, err = shot.NewPseudoclock(decl.Name, parentID, decl.Connection, tree.PseudoclockConfig{
			ClockMinimumPeriod: decl.ClockMinimumPeriod,
			WaitDelay:          decl.WaitDelay,
			Timebase:           decl.Timebase,
		})
	case "pseudoclock_device":
		d, err = shot.NewPseudoclockDevice(decl.Name, parentID, decl.Connection, decl.MinimumTrigger)
	case "output":
		d, err = shot.NewOutput(decl.Name, parentID, decl.Connection)
	case "trigger":
		d, err = shot.NewTrigger(decl.Name, parentID, decl.Connection)
	case "static_output":
		d, err = shot.NewStaticOutput(decl.Name, parentID, decl.Connection)
	default:
		// Unreachable: the schema restricts kind to the cases above.
		return &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("device %q: unknown kind %q", decl.Name, decl.Kind)}
	}
	if err != nil {
		return err
	}

	if decl.OutputDelay > 0 {
		if err := d.SetOutputDelay(decl.OutputDelay); err != nil {
			return err
		}
	}
	if decl.InitialTriggerTime != nil {
		if err := d.SetInitialTriggerTime(*decl.InitialTriggerTime); err != nil {
			return err
		}
	}
	return nil
}

func addInstruction(shot *tree.Shot, decl InstructionDecl) error {
	if decl.Kind == "wait" {
		_, err := shot.Wait(decl.T, decl.Name)
		return err
	}

	out, ok := shot.DeviceByName(decl.Output)
	if !ok {
		return &LoadError{
			Code:    ErrCodeUnknownOutput,
			Message: fmt.Sprintf("%s instruction at t=%v: unknown output %q", decl.Kind, decl.T, decl.Output),
		}
	}

	switch decl.Kind {
	case "constant":
		_, err := out.Constant(decl.T, decl.Value)
		return err
	case "function":
		w, ok := builtinWaveforms[decl.Function]
		if !ok {
			return &LoadError{
				Code:    ErrCodeBadWaveform,
				Message: fmt.Sprintf("function instruction on %q: unknown waveform %q", decl.Output, decl.Function),
			}
		}
		_, err := out.Function(decl.T, decl.Duration, w, decl.SampleRate)
		return err
	case "static":
		_, err := out.Static(decl.Value)
		return err
	default:
		return &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("unknown instruction kind %q", decl.Kind)}
	}
}
