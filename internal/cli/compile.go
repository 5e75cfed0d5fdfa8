package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shotline/shotline/internal/compiler"
	"github.com/shotline/shotline/internal/ir"
	"github.com/shotline/shotline/internal/loader"
	"github.com/shotline/shotline/internal/store"
	"github.com/shotline/shotline/internal/tree"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output   string // output file path
	Database string // SQLite path for persisting the sequence
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	OutputCount      int
	InstructionCount int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <sequence.yaml>",
		Short: "Compile a sequence description to quantised instruction lists",
		Long: `Compile a YAML sequence description into per-output instruction lists.

The compiler builds the device tree, aggregates timing limits across each
clock domain, resolves every instruction to wait-relative integer ticks
and validates the result. All quantisation errors and violations from one
run are reported together.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database to persist the compiled sequence")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	result, err := compileFile(formatter, path)
	if err != nil {
		return err
	}

	if len(result.TimingErrors) > 0 || len(result.Violations) > 0 {
		return outputCompileFailures(formatter, result)
	}

	stats := calculateStats(result.Sequence)

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeSequenceToFile(result.Sequence, opts.Output); err != nil {
			return outputCompileError(formatter, loader.ErrCodeGeneric, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	// Persist if --db specified
	var storedID string
	if opts.Database != "" {
		storedID, err = persistSequence(opts.Database, result.Sequence)
		if err != nil {
			return outputCompileError(formatter, loader.ErrCodeGeneric, fmt.Sprintf("persisting sequence: %v", err), nil)
		}
		formatter.VerboseLog("Stored sequence %s in %s", storedID, opts.Database)
	}

	return outputCompileSuccess(formatter, result.Sequence, stats, opts.Output, storedID)
}

// compileFile loads the description and drives the pipeline to the end.
// Load and structural errors come back as ExitErrors with code 2;
// quantisation errors and violations stay inside the result.
func compileFile(formatter *OutputFormatter, path string) (*compiler.Result, error) {
	shot, pipeline, err := loader.LoadFile(path)
	if err != nil {
		return nil, outputCompileError(formatter, errorCode(err), err.Error(), nil)
	}

	formatter.VerboseLog("Loaded %q: %d device(s), %d instruction(s)",
		shot.Name(), shot.Devices()-1, shot.TotalInstructions())

	result, err := pipeline.Stop()
	if err != nil {
		return nil, outputCompileError(formatter, errorCode(err), err.Error(), nil)
	}
	return result, nil
}

// errorCode extracts the structured code carried by loader and tree
// errors, falling back to the generic code.
func errorCode(err error) string {
	var loadErr *loader.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	var structErr *tree.StructuralError
	if errors.As(err, &structErr) {
		return structErr.Code
	}
	return loader.ErrCodeGeneric
}

// calculateStats computes summary statistics from the compiled sequence.
func calculateStats(seq *ir.CompiledSequence) CompilationStats {
	return CompilationStats{
		OutputCount:      len(seq.Outputs),
		InstructionCount: seq.InstructionCount(),
	}
}

func persistSequence(path string, seq *ir.CompiledSequence) (string, error) {
	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer st.Close()
	return st.WriteSequence(context.Background(), seq)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, seq *ir.CompiledSequence, stats CompilationStats, outputFile, storedID string) error {
	if formatter.Format == "json" {
		return formatter.Success(seq)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %q: %d output(s), %d instruction(s)\n\n",
		seq.Name, stats.OutputCount, stats.InstructionCount)

	for _, out := range seq.Outputs {
		fmt.Fprintf(formatter.Writer, "Output %s (%s on %s, timebase %v):\n",
			out.Device, out.Connection, out.Pseudoclock, out.Timebase)
		for _, inst := range out.Instructions {
			fmt.Fprintf(formatter.Writer, "  #%d %s: segment %d, tick %d\n",
				inst.Number, inst.Kind, inst.Segment, inst.QuantisedT)
		}
		fmt.Fprintln(formatter.Writer)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote compiled sequence to %s\n", outputFile)
	}
	if storedID != "" {
		fmt.Fprintf(formatter.Writer, "Stored as %s\n", storedID)
	}

	return nil
}

// outputCompileError outputs a single command-level error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Load and structural errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileFailures reports quantisation errors and validator
// violations collected during one run.
func outputCompileFailures(formatter *OutputFormatter, result *compiler.Result) error {
	total := len(result.TimingErrors) + len(result.Violations)

	if formatter.Format == "json" {
		cliErrors := make([]CLIError, 0, total)
		for _, err := range result.TimingErrors {
			cliErrors = append(cliErrors, CLIError{Code: ErrCodeQuantisation, Message: err.Error()})
		}
		for _, v := range result.Violations {
			cliErrors = append(cliErrors, CLIError{Code: v.Code, Message: v.Error()})
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitFailure, fmt.Sprintf("compilation failed with %d error(s)", total))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range result.TimingErrors {
		var qe *compiler.QuantisationError
		if errors.As(err, &qe) && qe.Site.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", qe.Site.File, qe.Site.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", ErrCodeQuantisation, err.Error())
	}
	for _, v := range result.Violations {
		if v.Site.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", v.Site.File, v.Site.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s on %s\n\n", v.Code, v.Message, v.Device)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("compilation failed with %d error(s)", total))
}

// ErrCodeQuantisation labels quantisation failures in CLI reports.
const ErrCodeQuantisation = "E150"

// writeSequenceToFile writes the compiled sequence to a file as indented
// JSON. (Canonical JSON without indentation is used only for hashing.)
func writeSequenceToFile(seq *ir.CompiledSequence, filename string) error {
	data, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sequence: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
