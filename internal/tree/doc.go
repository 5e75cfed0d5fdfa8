// Package tree implements the entity tree: a shot owning devices and
// instructions, with capability-gated composition and clock-domain-aware
// traversal.
//
// Nodes live in per-shot arenas and refer to each other by ID, never by
// pointer: parent, child and owning-pseudoclock links are arena indices
// fixed at construction. The tree only grows during construction; there
// is no removal operation.
//
// Composition is gated by the static accepted-kind tables in package ir:
// adding a child device or an instruction checks the parent's accepted
// set and fails with a StructuralError otherwise.
package tree
