// Package compiler turns graph definitions into policy graphs.
//
// Two source formats are supported. CUE (CompileGraph):
//
//	graph: {
//		name: "demo"
//		nodes: {
//			after:  {kind: "after", data: num: 15}
//			thresh: {kind: "threshold", data: num: 2}
//		}
//		connections: [{from: "after.pol", to: "thresh.pol1"}]
//	}
//
// and HCL (DecodeHCLGraph):
//
//	name = "demo"
//	node "after" "after" { num = 15 }
//	node "threshold" "thresh" { num = 2 }
//	connect {
//		from = "after.pol"
//		to   = "thresh.pol1"
//	}
//
// Both decode into a GraphSpec, which Build turns into an ir.Graph using the
// same rules as interactive editing: sockets must match, an input takes one
// connection, and connections may not form a cycle. Node declaration order
// is preserved and breaks ties in evaluation order.
package compiler
