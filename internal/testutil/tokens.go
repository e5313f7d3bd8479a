package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/policygraph/internal/engine"
)

var _ engine.PassTokenGenerator = (*SequentialTokens)(nil)

// SequentialTokens hands out "<prefix>-1", "<prefix>-2", ... so golden
// traces stay byte-identical across runs.
//
// The prefix usually comes from a scenario file:
//
//	pass_token: "scenario-5"
type SequentialTokens struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialTokens returns a generator for prefix. An empty prefix
// becomes "test-pass".
func NewSequentialTokens(prefix string) *SequentialTokens {
	if prefix == "" {
		prefix = "test-pass"
	}
	return &SequentialTokens{prefix: prefix}
}

// Generate returns the next token.
func (g *SequentialTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset starts numbering from 1 again.
func (g *SequentialTokens) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
