// Package editor is the headless host for policy graphs.
//
// An Editor owns the live graph. It performs node, connection and control
// edits, rejects edits that would break the graph's invariants (socket
// compatibility, one connection per input, acyclicity), and publishes a
// change event after each accepted edit. Evaluation never touches the live
// graph directly: the engine works on a Snapshot and hands worker mutations
// back through Apply, which emits no events.
package editor
