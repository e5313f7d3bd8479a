package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/policygraph/internal/ir"
)

// CompileGraph decodes a CUE graph definition.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
// v is the graph struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	spec, err := CompileGraph(v.LookupPath(cue.ParsePath("graph")))
func CompileGraph(v cue.Value) (GraphSpec, error) {
	if !v.Exists() {
		return GraphSpec{}, &CompileError{Field: "graph", Message: "graph is required"}
	}
	if err := v.Err(); err != nil {
		return GraphSpec{}, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return GraphSpec{}, formatCUEError(err)
	}

	var spec GraphSpec
	var err error
	if spec.Name, err = optionalString(v, "name"); err != nil {
		return GraphSpec{}, err
	}
	if spec.Root, err = optionalString(v, "root"); err != nil {
		return GraphSpec{}, err
	}

	if spec.Nodes, err = parseNodes(v); err != nil {
		return GraphSpec{}, err
	}
	if len(spec.Nodes) == 0 {
		return GraphSpec{}, &CompileError{
			Field:   "nodes",
			Message: "at least one node is required",
			Pos:     cuePos(v.Pos()),
		}
	}

	if spec.Connections, err = parseConnections(v); err != nil {
		return GraphSpec{}, err
	}
	return spec, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// parseNodes reads the nodes struct in declaration order. Each field label
// is a node id.
func parseNodes(v cue.Value) ([]NodeSpec, error) {
	nodesVal := v.LookupPath(cue.ParsePath("nodes"))
	if !nodesVal.Exists() {
		return nil, nil
	}

	iter, err := nodesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []NodeSpec
	for iter.Next() {
		id := iter.Label()
		nv := iter.Value()

		kindVal := nv.LookupPath(cue.ParsePath("kind"))
		if !kindVal.Exists() {
			return nil, &CompileError{
				Field:   "nodes." + id + ".kind",
				Message: "kind is required",
				Pos:     cuePos(nv.Pos()),
			}
		}
		kind, err := kindVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		data, err := parseData(nv.LookupPath(cue.ParsePath("data")), "nodes."+id+".data")
		if err != nil {
			return nil, err
		}

		specs = append(specs, NodeSpec{
			ID:   id,
			Kind: ir.NodeKind(kind),
			Data: data,
			Pos:  cuePos(nv.Pos()),
		})
	}
	return specs, nil
}

// parseData converts a struct of scalars into node data.
// Floats are rejected; so are booleans, lists and nested structs.
func parseData(v cue.Value, field string) (ir.Data, error) {
	data := ir.Data{}
	if !v.Exists() {
		return data, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		key := iter.Label()
		val, err := cueScalar(iter.Value(), field+"."+key)
		if err != nil {
			return nil, err
		}
		data[key] = val
	}
	return data, nil
}

func cueScalar(v cue.Value, field string) (ir.Value, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   field,
			Message: "floats are not allowed; use an integer",
			Pos:     cuePos(v.Pos()),
		}
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported value kind %v; want int, string or null", v.IncompleteKind()),
			Pos:     cuePos(v.Pos()),
		}
	}
}

func parseConnections(v cue.Value) ([]ConnectionSpec, error) {
	connsVal := v.LookupPath(cue.ParsePath("connections"))
	if !connsVal.Exists() {
		return nil, nil
	}

	iter, err := connsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ConnectionSpec
	for i := 0; iter.Next(); i++ {
		cv := iter.Value()
		field := fmt.Sprintf("connections[%d]", i)

		from, err := requiredString(cv, "from", field)
		if err != nil {
			return nil, err
		}
		to, err := requiredString(cv, "to", field)
		if err != nil {
			return nil, err
		}
		specs = append(specs, ConnectionSpec{From: from, To: to, Pos: cuePos(cv.Pos())})
	}
	return specs, nil
}

func requiredString(v cue.Value, name, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", &CompileError{
			Field:   field + "." + name,
			Message: name + " is required",
			Pos:     cuePos(v.Pos()),
		}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}
