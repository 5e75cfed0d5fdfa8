package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// DomainSequence is the domain prefix for sequence fingerprints. The
// version suffix enables future algorithm migration.
const DomainSequence = "shotline/sequence/v1"

// SequenceFingerprint computes a content-addressed identity for a
// compiled sequence. Two compilations of the same program produce the
// same fingerprint.
//
// Only hardware-exact fields participate: device names, connections,
// kinds, and the quantised tick counts. Nominal float times are excluded;
// they are user input, not hardware identity. Timebases are included as
// their shortest decimal representation so that the same grid always
// hashes the same way.
func SequenceFingerprint(seq *CompiledSequence) (string, error) {
	outputs := make([]any, len(seq.Outputs))
	for i, out := range seq.Outputs {
		insts := make([]any, len(out.Instructions))
		for j, inst := range out.Instructions {
			insts[j] = map[string]any{
				"kind":                    inst.Kind,
				"number":                  inst.Number,
				"segment":                 int64(inst.Segment),
				"quantised_t":             inst.QuantisedT,
				"quantised_duration":      inst.QuantisedDuration,
				"quantised_sample_period": inst.QuantisedSamplePeriod,
			}
		}
		outputs[i] = map[string]any{
			"device":       out.Device,
			"connection":   out.Connection,
			"pseudoclock":  out.Pseudoclock,
			"timebase":     strconv.FormatFloat(out.Timebase, 'g', -1, 64),
			"instructions": insts,
		}
	}

	canonical, err := MarshalCanonical(map[string]any{
		"name":    seq.Name,
		"outputs": outputs,
	})
	if err != nil {
		return "", fmt.Errorf("SequenceFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSequence, canonical), nil
}

// hashWithDomain computes SHA-256 with domain separation. The null byte
// separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MustSequenceFingerprint is like SequenceFingerprint but panics on
// error. Use only in tests or when inputs are known to be valid.
func MustSequenceFingerprint(seq *CompiledSequence) string {
	fp, err := SequenceFingerprint(seq)
	if err != nil {
		panic(err)
	}
	return fp
}
