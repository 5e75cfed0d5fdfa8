// Package compiler implements the compilation passes over a finished
// entity tree: bottom-up limit aggregation, top-down attribute
// propagation, wait-relative timing resolution and the final collect-all
// validation, driven in phase order by a Pipeline.
//
// The passes never mutate tree structure; they only fill in the computed
// fields of devices and instructions. Call discipline (which pass may run
// when, and that per-node hooks fire exactly once) is enforced by the
// shot's phase controller, not by convention.
package compiler
