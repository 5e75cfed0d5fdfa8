package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shotline/shotline/internal/ir"
)

// ErrNotFound is returned when a requested sequence does not exist.
var ErrNotFound = errors.New("sequence not found")

// SequenceInfo summarises one stored sequence.
type SequenceInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
	CreatedAt   string `json:"created_at"`
}

// ListSequences returns stored sequences, newest first.
func (s *Store) ListSequences(ctx context.Context) ([]SequenceInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, fingerprint, created_at
		FROM sequences
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	defer rows.Close()

	var infos []SequenceInfo
	for rows.Next() {
		var info SequenceInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Fingerprint, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("list sequences: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// ReadSequence reconstructs a compiled sequence from the store.
// Returns ErrNotFound if no sequence has the given ID.
func (s *Store) ReadSequence(ctx context.Context, id string) (*ir.CompiledSequence, error) {
	seq := &ir.CompiledSequence{}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, epsilon FROM sequences WHERE id = ?`, id).
		Scan(&seq.Name, &seq.Epsilon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read sequence %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device, connection, pseudoclock, timebase
		FROM outputs
		WHERE sequence_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("read sequence %s: %w", id, err)
	}
	defer rows.Close()

	var outputIDs []int64
	for rows.Next() {
		var outputID int64
		var out ir.CompiledOutput
		if err := rows.Scan(&outputID, &out.Device, &out.Connection, &out.Pseudoclock, &out.Timebase); err != nil {
			return nil, fmt.Errorf("read sequence %s: %w", id, err)
		}
		outputIDs = append(outputIDs, outputID)
		seq.Outputs = append(seq.Outputs, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sequence %s: %w", id, err)
	}

	for i, outputID := range outputIDs {
		insts, err := s.readInstructions(ctx, outputID)
		if err != nil {
			return nil, fmt.Errorf("read sequence %s: %w", id, err)
		}
		seq.Outputs[i].Instructions = insts
	}
	return seq, nil
}

func (s *Store) readInstructions(ctx context.Context, outputID int64) ([]ir.CompiledInstruction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, number, t, relative_t, segment, quantised_t, duration,
		       quantised_duration, samplerate, quantised_sample_period,
		       value, waveform, site_file, site_line
		FROM instructions
		WHERE output_id = ?
		ORDER BY position
	`, outputID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var insts []ir.CompiledInstruction
	for rows.Next() {
		var inst ir.CompiledInstruction
		if err := rows.Scan(&inst.Kind, &inst.Number, &inst.T, &inst.RelativeT,
			&inst.Segment, &inst.QuantisedT, &inst.Duration, &inst.QuantisedDuration,
			&inst.SampleRate, &inst.QuantisedSamplePeriod, &inst.Value,
			&inst.Waveform, &inst.Site.File, &inst.Site.Line); err != nil {
			return nil, err
		}
		insts = append(insts, inst)
	}
	return insts, rows.Err()
}
