package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shotline/shotline/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid            bool                       `json:"valid"`
	TimingErrors     []string                   `json:"timing_errors,omitempty"`
	Violations       []compiler.ValidationError `json:"violations,omitempty"`
	OutputCount      int                        `json:"output_count"`
	InstructionCount int                        `json:"instruction_count"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <sequence.yaml>",
		Short: "Compile a sequence and report problems without emitting output",
		Long: `Compile a YAML sequence description and report every quantisation
error and validation violation, without writing the compiled artifact.

Runs the same pipeline as compile, so a sequence that validates cleanly
will also compile cleanly.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
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
		return outputValidationErrors(formatter, result)
	}

	return outputValidateSuccess(formatter, result)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result *compiler.Result) error {
	stats := calculateStats(result.Sequence)

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{
			Valid:            true,
			OutputCount:      stats.OutputCount,
			InstructionCount: stats.InstructionCount,
		})
	}

	fmt.Fprintf(formatter.Writer, "✓ Sequence valid: %d output(s), %d instruction(s)\n",
		stats.OutputCount, stats.InstructionCount)
	return nil
}

// outputValidationErrors outputs every collected problem.
func outputValidationErrors(formatter *OutputFormatter, result *compiler.Result) error {
	total := len(result.TimingErrors) + len(result.Violations)

	if formatter.Format == "json" {
		vr := ValidationResult{
			Valid:      false,
			Violations: result.Violations,
		}
		for _, err := range result.TimingErrors {
			vr.TimingErrors = append(vr.TimingErrors, err.Error())
		}
		if result.Sequence != nil {
			stats := calculateStats(result.Sequence)
			vr.OutputCount = stats.OutputCount
			vr.InstructionCount = stats.InstructionCount
		}

		first := &CLIError{Code: ErrCodeQuantisation}
		if len(result.TimingErrors) > 0 {
			first.Message = result.TimingErrors[0].Error()
		} else {
			first.Code = result.Violations[0].Code
			first.Message = result.Violations[0].Message
		}

		response := CLIResponse{
			Status: "error",
			Data:   vr,
			Error:  first,
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", total))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range result.TimingErrors {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", ErrCodeQuantisation, err.Error())
	}
	for _, v := range result.Violations {
		if v.Site.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", v.Site.File, v.Site.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s on %s\n\n", v.Code, v.Message, v.Device)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", total))
}
