package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/policygraph/internal/ir"
)

// marshalValue converts an output value to canonical JSON TEXT.
func marshalValue(v ir.Value) (string, error) {
	if v == nil {
		v = ir.Null{}
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

func unmarshalValue(data string) (ir.Value, error) {
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// marshalWarnings stores warnings as a JSON array; nil becomes [].
func marshalWarnings(ws []string) (string, error) {
	if ws == nil {
		ws = []string{}
	}
	data, err := ir.MarshalCanonical(ws)
	if err != nil {
		return "", fmt.Errorf("marshal warnings: %w", err)
	}
	return string(data), nil
}

func unmarshalWarnings(data string) ([]string, error) {
	var ws []string
	if err := json.Unmarshal([]byte(data), &ws); err != nil {
		return nil, fmt.Errorf("unmarshal warnings: %w", err)
	}
	if len(ws) == 0 {
		return nil, nil
	}
	return ws, nil
}

// marshalGraph stores the full graph, control display values included, so
// that a snapshot reads back exactly as it was evaluated.
func marshalGraph(g *ir.Graph) (string, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("marshal graph: %w", err)
	}
	return string(data), nil
}

func unmarshalGraph(data string) (*ir.Graph, error) {
	var g ir.Graph
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	return &g, nil
}
