package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsDeterministicPerSeed(t *testing.T) {
	g := NewWorkloadGenerator()
	g.OperationCount = 200

	a, err := g.Generate()
	require.NoError(t, err)
	b, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	g.Seed = 2
	c, err := g.Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerateRespectsParameters(t *testing.T) {
	g := NewWorkloadGenerator()
	g.OperationCount = 2000
	g.ZipfianV = 10
	g.ReadPercentage = 0.8

	instrs, err := g.Generate()
	require.NoError(t, err)
	require.Len(t, instrs, 2000)

	names := map[string]bool{}
	reads := 0
	for _, in := range instrs {
		names[in.Name] = true
		if in.Op.Read() {
			reads++
		}
		assert.Contains(t, Ops, in.Op)
	}
	assert.LessOrEqual(t, len(names), 10)
	assert.InDelta(t, 0.8, float64(reads)/2000, 0.05)
}

func TestGenerateAllWrites(t *testing.T) {
	g := NewWorkloadGenerator()
	g.ReadPercentage = 0
	instrs, err := g.Generate()
	require.NoError(t, err)
	for _, in := range instrs {
		assert.False(t, in.Op.Read(), "unexpected %s", in.Op)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*WorkloadGenerator)
	}{
		{"read percentage above one", func(g *WorkloadGenerator) { g.ReadPercentage = 1.5 }},
		{"flat zipf", func(g *WorkloadGenerator) { g.ZipfianS = 1 }},
		{"no names", func(g *WorkloadGenerator) { g.ZipfianV = 0 }},
		{"negative count", func(g *WorkloadGenerator) { g.OperationCount = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWorkloadGenerator()
			tt.mutate(g)
			_, err := g.Generate()
			assert.Error(t, err)
		})
	}
}
