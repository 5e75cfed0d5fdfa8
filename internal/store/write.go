package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/shotline/shotline/internal/ir"
)

// WriteSequence persists a compiled sequence with all of its outputs and
// instructions in one transaction, returning the stored sequence ID.
//
// Sequence identity is content-addressed: inserting a sequence whose
// fingerprint already exists is a no-op and the existing ID is returned.
// The row ID itself is a time-sortable UUIDv7.
func (s *Store) WriteSequence(ctx context.Context, seq *ir.CompiledSequence) (string, error) {
	fingerprint, err := ir.SequenceFingerprint(seq)
	if err != nil {
		return "", fmt.Errorf("write sequence: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write sequence: %w", err)
	}
	defer tx.Rollback()

	id := uuid.Must(uuid.NewV7()).String()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sequences (id, name, fingerprint, epsilon)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO NOTHING
	`, id, seq.Name, fingerprint, seq.Epsilon)
	if err != nil {
		return "", fmt.Errorf("write sequence: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("write sequence: %w", err)
	}
	if inserted == 0 {
		// Idempotency: same quantised sequence, same record.
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM sequences WHERE fingerprint = ?`, fingerprint).Scan(&existing)
		if err != nil {
			return "", fmt.Errorf("write sequence: %w", err)
		}
		return existing, nil
	}

	for pos, out := range seq.Outputs {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO outputs (sequence_id, position, device, connection, pseudoclock, timebase)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, pos, out.Device, out.Connection, out.Pseudoclock, out.Timebase)
		if err != nil {
			return "", fmt.Errorf("write output %s: %w", out.Device, err)
		}
		outputID, err := res.LastInsertId()
		if err != nil {
			return "", fmt.Errorf("write output %s: %w", out.Device, err)
		}
		for ipos, inst := range out.Instructions {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO instructions
				(output_id, position, kind, number, t, relative_t, segment,
				 quantised_t, duration, quantised_duration, samplerate,
				 quantised_sample_period, value, waveform, site_file, site_line)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, outputID, ipos, inst.Kind, inst.Number, inst.T, inst.RelativeT,
				inst.Segment, inst.QuantisedT, inst.Duration, inst.QuantisedDuration,
				inst.SampleRate, inst.QuantisedSamplePeriod, inst.Value,
				inst.Waveform, inst.Site.File, inst.Site.Line)
			if err != nil {
				return "", fmt.Errorf("write instruction %d of %s: %w", inst.Number, out.Device, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write sequence: %w", err)
	}
	return id, nil
}
