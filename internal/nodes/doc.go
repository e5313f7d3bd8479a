// Package nodes implements the seven node kinds of a policy graph.
//
// Each kind is a Descriptor: Build declares the node's initial ports and
// controls, Work computes its outputs for one evaluation pass from the
// node's snapshot and the values delivered by its connected inputs.
//
// Workers never touch the live graph. Every side effect (writing a preview
// control, adding or removing threshold operand ports) is returned as a
// Mutation and applied by the caller after the worker returns.
//
// Missing or mismatched values never fail a pass: numbers degrade to their
// default and policy fragments to the empty string, so "and(pk(A),)" is a
// normal output for a half-built graph.
package nodes
