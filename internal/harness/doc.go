// Package harness runs scripted edit scenarios against a live graph and
// checks the policy expressions it produces.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: threshold_over_timelocks
//	description: "A threshold grows a spare operand as inputs fill"
//	pass_token: scenario-5
//	graph:
//	  nodes:
//	    - {id: after, kind: after, data: {num: 15}}
//	    - {id: thresh, kind: threshold, data: {num: 2}}
//	  connections:
//	    - {from: after.pol, to: thresh.pol1}
//	steps:
//	  - connect: {from: older.pol, to: thresh.pol2}
//	    expect:
//	      expressions: {thresh: "thresh(2,after(15),older(25))"}
//	      ports: {thresh: [num, pol1, pol2, pol3]}
//	  - connect: {from: thresh.pol, to: after.num}
//	    expect:
//	      error: SOCKET_MISMATCH
//	assertions:
//	  - type: expression
//	    node: thresh
//	    equals: "thresh(2,after(15),older(25))"
//	  - type: pass_count
//	    count: 3
//
// The starting graph is given inline (graph), read from disk (graph_file,
// relative to the scenario), or is the demo graph (demo: true). With none of
// them the scenario starts empty.
//
// # Step Types
//
//   - add_node: {id, kind, data}
//   - remove_node: node id
//   - connect: {from, to}
//   - disconnect: input port as node.port
//   - set_data: {node, key, value}
//
// After every successful edit the graph is settled: passes run until the
// dynamic ports stop changing. A rejected edit records its error code and
// runs no pass.
//
// # Assertion Types
//
//   - expression: terminal expression of a node after the last step
//   - ports: input port names of a node after the last step
//   - pass_count: number of passes recorded in the store
//   - stored_output: value of node.port in the latest stored pass
//   - warning: some pass logged a warning containing the text
//
// # Deterministic Testing
//
// Every scenario runs on a fresh in-memory store with a resettable logical
// clock and sequential pass tokens, so the trace is byte-identical across
// runs and can be compared with a golden file.
package harness
