package editor

import (
	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/nodes"
)

// DemoGraph builds the starter graph: after(15) and older(25) feeding a
// 2-of-n threshold, with only the after node connected so far.
func DemoGraph(registry *nodes.Registry) *ir.Graph {
	e := New(registry, &ir.Graph{Name: "demo"})
	mustAdd(e, ir.KindAfter, "after", ir.Data{"num": ir.Int(15)})
	mustAdd(e, ir.KindOlder, "older", ir.Data{"num": ir.Int(25)})
	mustAdd(e, ir.KindThreshold, "thresh", ir.Data{"num": ir.Int(2)})
	if err := e.Connect(ir.PortRef{Node: "after", Port: "pol"}, ir.PortRef{Node: "thresh", Port: "pol1"}); err != nil {
		panic(err)
	}
	return e.Snapshot()
}

func mustAdd(e *Editor, kind ir.NodeKind, id string, data ir.Data) {
	if _, err := e.AddNode(kind, id, data); err != nil {
		panic(err)
	}
}
