package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.NotEqual(t, a, b)
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("pass-1", "pass-2")

	assert.Equal(t, "pass-1", g.Generate())
	assert.Equal(t, "pass-2", g.Generate())
	assert.Equal(t, "pass-2.1", g.Generate())
	assert.Equal(t, "pass-2.2", g.Generate())
}

func TestFixedGenerator_Default(t *testing.T) {
	g := NewFixedGenerator()
	assert.Equal(t, "pass", g.Generate())
	assert.Equal(t, "pass.1", g.Generate())
}
