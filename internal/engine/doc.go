// Package engine evaluates policy graphs.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Change events from the editor are enqueued to a FIFO queue. Engine.Run
// dequeues them one at a time and runs a full evaluation pass over a fresh
// snapshot of the live graph. Only the Run goroutine evaluates.
//
// Pass Flow:
//  1. Snapshot the live graph and stamp the pass with the logical clock
//  2. Order nodes topologically (Kahn, ties broken by declaration order)
//  3. For each node: gather connected upstream outputs, call the worker
//  4. Hand the worker's mutations back to the editor immediately
//  5. Record terminal expressions (and the pass, when a store is attached)
//
// Cancellation:
// Between node evaluations the driver checks the context, the abort flag
// and whether a newer event is waiting in the queue. Any of the three ends
// the pass with ErrPassAborted. Outputs of an aborted pass are discarded;
// mutations it already applied stay in the live graph.
//
// Workers never block, never enqueue events and never mutate the graph
// themselves, so a pass always terminates and applying its mutations never
// schedules another pass.
package engine
