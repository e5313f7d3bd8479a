package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/policygraph/internal/ir"
)

func TestResolveStringPrecedence(t *testing.T) {
	data := ir.Data{"pol1": ir.String("pk(stored)")}

	tests := []struct {
		name string
		in   Inputs
		want string
	}{
		{"connected wins", Inputs{"pol1": ir.String("pk(up)")}, "pk(up)"},
		{"connected empty still wins", Inputs{"pol1": ir.String("")}, ""},
		{"connected mismatch degrades", Inputs{"pol1": ir.Int(3)}, ""},
		{"stored fallback", Inputs{}, "pk(stored)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveString(tt.in, data, "pol1", "pol1"))
		})
	}
}

func TestResolveStringAbsent(t *testing.T) {
	assert.Equal(t, "", ResolveString(nil, ir.Data{}, "pol1", "pol1"))
	assert.Equal(t, "", ResolveString(nil, ir.Data{"pol1": ir.Int(1)}, "pol1", "pol1"))
}

func TestResolveIntPrecedence(t *testing.T) {
	data := ir.Data{"num": ir.Int(7)}

	tests := []struct {
		name string
		in   Inputs
		data ir.Data
		want int64
	}{
		{"connected wins", Inputs{"num": ir.Int(15)}, data, 15},
		{"connected null gives default", Inputs{"num": ir.Null{}}, data, 0},
		{"connected string gives default", Inputs{"num": ir.String("15")}, data, 0},
		{"stored fallback", nil, data, 7},
		{"stored mismatch gives default", nil, ir.Data{"num": ir.String("x")}, 0},
		{"nothing gives default", nil, ir.Data{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveInt(tt.in, tt.data, "num", "num", 0))
		})
	}
}
