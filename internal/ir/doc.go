// Package ir provides the foundational types for shotline.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps it
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Device and instruction variants are closed tagged enums; composition
//     rules are static tables keyed by kind, not a type hierarchy walk
//   - Quantised times are int64 tick counts, never floats
//   - The canonical JSON used for sequence fingerprints contains only
//     strings, integers and booleans
//   - All JSON tags use snake_case
package ir
