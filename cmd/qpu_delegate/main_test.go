package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoGraph(t *testing.T) {
	g, out, err := demoGraph(3)
	require.NoError(t, err)
	assert.Equal(t, 4, g.NumNodes())

	require.NoError(t, g.Invoke(context.Background(), nil))
	// a = j/2, b = j, c = 3j/2, d = 2j for j = 1..3.
	for j, got := range g.Data(out) {
		x := float32(j + 1)
		a, b, c, d := x/2, x, 3*x/2, 2*x
		assert.InDelta(t, ((a+b)-c)*d+a, got, 1e-5)
	}

	_, _, err = demoGraph(0)
	assert.Error(t, err)
}

func TestRunMatchesReference(t *testing.T) {
	for _, op := range []string{"ADD", "SUB", "MUL", "add"} {
		assert.NoError(t, run(context.Background(), 16, op, false), op)
	}
	assert.NoError(t, run(context.Background(), 4, "ADD", true))
	assert.Error(t, run(context.Background(), 4, "DIV", false))
}

func TestFirstMismatch(t *testing.T) {
	_, ok := firstMismatch([]float32{1, 2}, []float32{1, 2})
	assert.True(t, ok)

	i, ok := firstMismatch([]float32{1, 2, 3}, []float32{1, 2.5, 3})
	assert.False(t, ok)
	assert.Equal(t, 1, i)

	_, ok = firstMismatch([]float32{1}, []float32{1, 2})
	assert.False(t, ok)
}
