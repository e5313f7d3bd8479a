// Package ir provides the graph data model shared by every other package.
//
// A policy graph is a set of typed nodes (numbers, keys, combinators, time
// predicates, thresholds) joined by connections between typed ports. This
// package defines those types, their JSON form and the canonical encoding
// used to hash snapshots. It imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - stored numbers are int64
//   - Port names are unique within a node
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
