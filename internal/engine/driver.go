package engine

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/nodes"
)

// process runs one pass over snap and reports how many port mutations its
// workers requested.
func (e *Engine) process(ctx context.Context, snap *ir.Graph) (*ir.Pass, int, error) {
	e.aborting.Store(false)

	hash, err := ir.SnapshotHash(snap)
	if err != nil {
		return nil, 0, fmt.Errorf("process: %w", err)
	}
	token := e.tokens.Generate()
	seq := e.clock.Next()
	p := &ir.Pass{
		ID:            ir.PassID(token, hash, seq),
		Token:         token,
		Seq:           seq,
		SnapshotHash:  hash,
		Status:        ir.PassCompleted,
		Outputs:       []ir.PortValue{},
		EngineVersion: ir.EngineVersion,
	}

	ctx, span := e.tracer.Start(ctx, "policygraph.pass",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("pass.id", p.ID),
			attribute.String("pass.token", token),
			attribute.Int64("pass.seq", seq),
			attribute.String("snapshot.hash", hash),
			attribute.Int("graph.nodes", len(snap.Nodes)),
		),
	)
	defer span.End()

	order, err := TopoOrder(snap)
	if err != nil {
		var re *RuntimeError
		if errors.As(err, &re) {
			re.PassID = p.ID
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, err
	}

	terminal := make(map[string]bool)
	for _, id := range snap.Terminals() {
		terminal[id] = true
	}

	values := make(map[string]map[string]ir.Value, len(snap.Nodes))
	portChanges := 0

	for _, id := range order {
		if reason := e.abortReason(ctx); reason != "" {
			e.logger.Debug("pass aborted", "pass", p.ID, "seq", seq, "reason", reason, "before", id)
			span.SetStatus(codes.Error, "aborted: "+reason)
			p.Status = ir.PassAborted
			p.Outputs = []ir.PortValue{}
			abortErr := newAbortError(p.ID, reason)
			if err := e.record(ctx, snap, p); err != nil {
				e.notify(p)
				return p, portChanges, errors.Join(abortErr, err)
			}
			e.notify(p)
			return p, portChanges, abortErr
		}

		node := snap.Node(id)
		d, ok := e.registry.Lookup(node.Kind)
		if !ok {
			err := newUnknownKindError(p.ID, id, string(node.Kind))
			span.SetStatus(codes.Error, err.Error())
			return nil, portChanges, err
		}

		res := d.Work(node, gatherInputs(snap, node, values))
		values[id] = res.Outputs

		changes := countPortMutations(res.Mutations)
		portChanges += changes
		if e.host != nil && len(res.Mutations) > 0 {
			e.host.Apply(res.Mutations)
		}
		for _, w := range res.Warnings {
			e.logger.Warn(w, "pass", p.ID, "node", id)
			p.Warnings = append(p.Warnings, w)
		}

		for _, out := range node.Outputs {
			v, ok := res.Outputs[out.Name]
			if !ok {
				v = ir.Null{}
			}
			p.Outputs = append(p.Outputs, ir.PortValue{
				Node:     id,
				Port:     out.Name,
				Value:    v,
				Terminal: terminal[id] && out.Socket == ir.SocketPolicy,
			})
		}

		span.AddEvent("node.work", trace.WithAttributes(
			attribute.String("node.id", id),
			attribute.String("node.kind", string(node.Kind)),
			attribute.Int("node.port_changes", changes),
		))
	}

	e.logger.Debug("pass completed",
		"pass", p.ID,
		"seq", seq,
		"nodes", len(order),
		"port_changes", portChanges,
	)
	if err := e.record(ctx, snap, p); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return p, portChanges, err
	}
	e.notify(p)
	return p, portChanges, nil
}

// abortReason reports why the pass in flight must stop, or "".
func (e *Engine) abortReason(ctx context.Context) string {
	switch {
	case ctx.Err() != nil:
		return "context: " + ctx.Err().Error()
	case e.aborting.Load():
		return "abort requested"
	case e.queue.Len() > 0:
		return "newer event queued"
	}
	return ""
}

// gatherInputs collects the upstream value for every connected input of
// node. A connected input is always present in the result, carrying Null
// when its upstream produced nothing on that port, so workers can tell a
// connected-but-empty operand from an unconnected one.
func gatherInputs(snap *ir.Graph, node *ir.Node, values map[string]map[string]ir.Value) nodes.Inputs {
	in := make(nodes.Inputs)
	for _, c := range snap.Connections {
		if c.To.Node != node.ID {
			continue
		}
		if _, ok := node.Input(c.To.Port); !ok {
			continue
		}
		v, ok := values[c.From.Node][c.From.Port]
		if !ok || v == nil {
			v = ir.Null{}
		}
		in[c.To.Port] = v
	}
	return in
}

func countPortMutations(muts []nodes.Mutation) int {
	n := 0
	for _, m := range muts {
		switch m.(type) {
		case nodes.AddInput, nodes.RemoveInput:
			n++
		}
	}
	return n
}

// record persists the snapshot and pass when a store is attached.
func (e *Engine) record(ctx context.Context, snap *ir.Graph, p *ir.Pass) error {
	if e.store == nil {
		return nil
	}
	// An aborted pass may have been stopped by ctx; the record still goes in.
	ctx = context.WithoutCancel(ctx)
	if _, err := e.store.WriteSnapshot(ctx, snap); err != nil {
		e.logger.Error("record snapshot failed", "pass", p.ID, "error", err)
		return fmt.Errorf("record pass %s: %w", p.ID, err)
	}
	if err := e.store.WritePass(ctx, *p); err != nil {
		e.logger.Error("record pass failed", "pass", p.ID, "error", err)
		return fmt.Errorf("record pass %s: %w", p.ID, err)
	}
	return nil
}
