package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shotline/shotline/internal/store"
)

// SequencesOptions holds flags for the sequences command.
type SequencesOptions struct {
	*RootOptions
	Database string
	Output   string
}

// NewSequencesCommand creates the sequences command group.
func NewSequencesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SequencesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sequences",
		Short: "Inspect compiled sequences stored in a database",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "shotline.db", "SQLite database path")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List stored sequences",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSequencesList(opts, cmd)
		},
	}

	show := &cobra.Command{
		Use:           "show <id>",
		Short:         "Show one stored sequence",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSequencesShow(opts, args[0], cmd)
		},
	}
	show.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	cmd.AddCommand(list)
	cmd.AddCommand(show)
	return cmd
}

func runSequencesList(opts *SequencesOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.ListSequences(context.Background())
	if err != nil {
		_ = formatter.Error("E001", err.Error(), nil)
		return WrapExitError(ExitCommandError, "listing sequences", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(infos)
	}

	if len(infos) == 0 {
		fmt.Fprintln(formatter.Writer, "No sequences stored")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(formatter.Writer, "%s  %s  %s  %s\n",
			info.ID, info.CreatedAt, info.Name, info.Fingerprint[:12])
	}
	return nil
}

func runSequencesShow(opts *SequencesOptions, id string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := openStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	seq, err := st.ReadSequence(context.Background(), id)
	if errors.Is(err, store.ErrNotFound) {
		_ = formatter.Error("E001", fmt.Sprintf("no sequence with id %q", id), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("no sequence with id %q", id))
	}
	if err != nil {
		_ = formatter.Error("E001", err.Error(), nil)
		return WrapExitError(ExitCommandError, "reading sequence", err)
	}

	if opts.Output != "" {
		if err := writeSequenceToFile(seq, opts.Output); err != nil {
			_ = formatter.Error("E001", err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(seq)
	}

	data, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return WrapExitError(ExitCommandError, "marshaling sequence", err)
	}
	fmt.Fprintln(formatter.Writer, string(data))
	return nil
}

func openStore(formatter *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error("E002", fmt.Sprintf("database %s not found", path), nil)
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database %s not found", path))
	}
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error("E001", err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "opening database", err)
	}
	return st, nil
}
