package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecordStatistics(t *testing.T) {
	p := New(10)
	p.Record(Event{Name: "invoke", Op: "stage", Node: -1, Duration: 4 * time.Millisecond})
	p.Record(Event{Name: "invoke", Op: "stage", Node: -1, Duration: 2 * time.Millisecond})
	p.Record(Event{Name: "invoke", Op: "stage", Node: -1, Duration: 6 * time.Millisecond})

	s, ok := p.Summary("invoke")
	require.True(t, ok)
	assert.Equal(t, int64(3), s.Count)
	assert.Equal(t, 2*time.Millisecond, s.MinTime)
	assert.Equal(t, 6*time.Millisecond, s.MaxTime)
	assert.Equal(t, 4*time.Millisecond, s.Average())

	_, ok = p.Summary("missing")
	assert.False(t, ok)
}

func TestBufferIsBounded(t *testing.T) {
	p := New(2)
	for i := 0; i < 5; i++ {
		p.Record(Event{Name: "node", Node: i, Duration: time.Microsecond})
	}

	events := p.Events()
	require.Len(t, events, 2)
	assert.Equal(t, 0, events[0].Node)
	assert.Equal(t, 1, events[1].Node)
	assert.Equal(t, 3, p.Dropped())

	s, _ := p.Summary("node")
	assert.Equal(t, int64(5), s.Count, "statistics include dropped events")

	p.Reset()
	assert.Empty(t, p.Events())
	assert.Zero(t, p.Dropped())
}

func TestStartOperation(t *testing.T) {
	p := New(0)
	stop := p.StartOperation("ADD", "ADD", 3)
	time.Sleep(time.Millisecond)
	stop()

	events := p.Events()
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].Node)
	assert.GreaterOrEqual(t, events[0].Duration, time.Millisecond)
}

func TestNilProfiler(t *testing.T) {
	var p *Profiler
	p.StartOperation("x", "y", 0)()
	p.Record(Event{})
	p.Reset()
	p.Report(zap.NewNop())
	assert.Nil(t, p.Events())
	assert.Zero(t, p.Dropped())
}

func TestReport(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := New(4)
	p.Record(Event{Name: "a", Op: "ADD", Node: 0, Duration: time.Millisecond})
	p.Record(Event{Name: "b", Op: "SUB", Node: 1, Duration: time.Millisecond})

	p.Report(zap.New(core))

	assert.Equal(t, 1, logs.FilterMessage("profiling info").Len())
	assert.Equal(t, 2, logs.FilterMessage("profile").Len())
	assert.Equal(t, 2, logs.FilterMessage("profile summary").Len())
}
