package compiler

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/roach88/policygraph/internal/ir"
)

// hclGraphFile is the top-level structure of an HCL graph file.
type hclGraphFile struct {
	Name        string           `hcl:"name,optional"`
	Root        string           `hcl:"root,optional"`
	Nodes       []*hclNode       `hcl:"node,block"`
	Connections []*hclConnection `hcl:"connect,block"`
}

// hclNode is a `node "<kind>" "<id>" { ... }` block. Its attributes are the
// node's data.
type hclNode struct {
	Kind string   `hcl:"kind,label"`
	ID   string   `hcl:"id,label"`
	Body hcl.Body `hcl:",remain"`
}

type hclConnection struct {
	From string   `hcl:"from"`
	To   string   `hcl:"to"`
	Body hcl.Body `hcl:",remain"`
}

// DecodeHCLGraph parses an HCL graph definition. filename is used in
// positions only.
func DecodeHCLGraph(src []byte, filename string) (GraphSpec, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return GraphSpec{}, formatHCLDiags(diags)
	}

	var parsed hclGraphFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return GraphSpec{}, formatHCLDiags(diags)
	}

	spec := GraphSpec{Name: parsed.Name, Root: parsed.Root}
	for _, n := range parsed.Nodes {
		data, err := decodeHCLData(n.Body, "nodes."+n.ID+".data")
		if err != nil {
			return GraphSpec{}, err
		}
		spec.Nodes = append(spec.Nodes, NodeSpec{
			ID:   n.ID,
			Kind: ir.NodeKind(n.Kind),
			Data: data,
			Pos:  hclPos(n.Body.MissingItemRange()),
		})
	}
	if len(spec.Nodes) == 0 {
		return GraphSpec{}, &CompileError{
			Field:   "nodes",
			Message: "at least one node is required",
			Pos:     Position{Filename: filename, Line: 1, Column: 1},
		}
	}

	for i, c := range parsed.Connections {
		attrs, diags := c.Body.JustAttributes()
		if diags.HasErrors() {
			return GraphSpec{}, formatHCLDiags(diags)
		}
		if len(attrs) > 0 {
			attr := attrs[sortedAttrNames(attrs)[0]]
			return GraphSpec{}, &CompileError{
				Field:   fmt.Sprintf("connections[%d].%s", i, attr.Name),
				Message: "unexpected attribute; a connection takes only from and to",
				Pos:     hclPos(attr.NameRange),
			}
		}
		spec.Connections = append(spec.Connections, ConnectionSpec{
			From: c.From,
			To:   c.To,
			Pos:  hclPos(c.Body.MissingItemRange()),
		})
	}
	return spec, nil
}

func decodeHCLData(body hcl.Body, field string) (ir.Data, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, formatHCLDiags(diags)
	}

	data := ir.Data{}
	for _, name := range sortedAttrNames(attrs) {
		attr := attrs[name]
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, formatHCLDiags(diags)
		}
		v, err := ctyScalar(val)
		if err != nil {
			return nil, &CompileError{
				Field:   field + "." + name,
				Message: err.Error(),
				Pos:     hclPos(attr.Expr.Range()),
			}
		}
		data[name] = v
	}
	return data, nil
}

func ctyScalar(val cty.Value) (ir.Value, error) {
	if val.IsNull() {
		return ir.Null{}, nil
	}
	if !val.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	switch val.Type() {
	case cty.String:
		return ir.String(val.AsString()), nil
	case cty.Number:
		bf := val.AsBigFloat()
		if !bf.IsInt() {
			return nil, fmt.Errorf("floats are not allowed; use an integer")
		}
		n, acc := bf.Int64()
		if acc != big.Exact {
			return nil, fmt.Errorf("integer %s is out of range", bf.Text('f', 0))
		}
		return ir.Int(n), nil
	default:
		return nil, fmt.Errorf("unsupported value type %s; want number, string or null", val.Type().FriendlyName())
	}
}

func sortedAttrNames(attrs hcl.Attributes) []string {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
