package nodes

import "github.com/roach88/policygraph/internal/ir"

// ResolveString resolves a policy or key operand.
//
// A connected value always wins, even when empty. Otherwise the stored
// control value is used. Anything absent or of the wrong type is "".
func ResolveString(in Inputs, data ir.Data, port, key string) string {
	if v, connected := in[port]; connected {
		s, _ := ir.AsString(v)
		return s
	}
	s, _ := ir.AsString(data.Get(key))
	return s
}

// ResolveInt resolves a numeric operand with the same precedence as
// ResolveString, falling back to def when nothing usable is found.
// A connected port that delivers no integer yields def, not the stored value.
func ResolveInt(in Inputs, data ir.Data, port, key string, def int64) int64 {
	if v, connected := in[port]; connected {
		if n, ok := ir.AsInt(v); ok {
			return n
		}
		return def
	}
	if n, ok := ir.AsInt(data.Get(key)); ok {
		return n
	}
	return def
}
