// Package profiler - Timing of inference stages and graph nodes.
package profiler

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxEntries is the default size of the event buffer.
const DefaultMaxEntries = 1024

// Event is a single timed operation.
type Event struct {
	// Name identifies the operation, for example "invoke" or a node tag.
	Name string
	// Op is the operator or stage kind.
	Op string
	// Node is the graph node index, or -1 for stages outside a graph.
	Node int
	// Begin is when the operation started.
	Begin time.Time
	// Duration is how long the operation took.
	Duration time.Duration
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// Average returns the mean duration, or zero when nothing was recorded.
func (t TimeTracker) Average() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.TotalTime / time.Duration(t.Count)
}

// Profiler records events into a bounded buffer and keeps per-name statistics.
//
// Once the buffer is full further events are counted as dropped but still feed the
// statistics. A nil *Profiler is valid and records nothing.
type Profiler struct {
	mu             sync.Mutex
	maxEntries     int
	events         []Event
	dropped        int
	operationTimes map[string]*TimeTracker
}

// New creates a profiler holding at most maxEntries events. Non-positive values use
// DefaultMaxEntries.
func New(maxEntries int) *Profiler {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Profiler{
		maxEntries:     maxEntries,
		events:         make([]Event, 0, min(maxEntries, 64)),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// StartOperation begins timing an operation and returns the function that ends it.
//
// Arguments:
//   - name: Operation name, used as the statistics key.
//   - op: Operator or stage kind.
//   - node: Graph node index, or -1.
//
// Returns:
//   - func(): Records the event when called.
func (p *Profiler) StartOperation(name, op string, node int) func() {
	if p == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.Record(Event{Name: name, Op: op, Node: node, Begin: start, Duration: time.Since(start)})
	}
}

// Record adds a completed event.
func (p *Profiler) Record(e Event) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.events) < p.maxEntries {
		p.events = append(p.events, e)
	} else {
		p.dropped++
	}

	tracker, exists := p.operationTimes[e.Name]
	if !exists {
		tracker = &TimeTracker{MinTime: e.Duration, MaxTime: e.Duration}
		p.operationTimes[e.Name] = tracker
	}
	tracker.Count++
	tracker.TotalTime += e.Duration
	if e.Duration < tracker.MinTime {
		tracker.MinTime = e.Duration
	}
	if e.Duration > tracker.MaxTime {
		tracker.MaxTime = e.Duration
	}
}

// Events returns a copy of the buffered events in recording order.
func (p *Profiler) Events() []Event {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Dropped returns the number of events that did not fit in the buffer.
func (p *Profiler) Dropped() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Summary returns the statistics recorded under name.
func (p *Profiler) Summary(name string) (TimeTracker, bool) {
	if p == nil {
		return TimeTracker{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	tracker, ok := p.operationTimes[name]
	if !ok {
		return TimeTracker{}, false
	}
	return *tracker, true
}

// Reset clears events and statistics.
func (p *Profiler) Reset() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = p.events[:0]
	p.dropped = 0
	p.operationTimes = make(map[string]*TimeTracker)
}

// Report logs every buffered event followed by per-name statistics.
func (p *Profiler) Report(log *zap.Logger) {
	if p == nil {
		return
	}
	events := p.Events()
	log.Info("profiling info", zap.Int("events", len(events)), zap.Int("dropped", p.Dropped()))
	for _, e := range events {
		log.Info("profile",
			zap.Float64("time_ms", float64(e.Duration.Microseconds())/1000),
			zap.Int("node", e.Node),
			zap.String("op", e.Op),
			zap.String("name", e.Name),
		)
	}

	p.mu.Lock()
	names := make([]string, 0, len(p.operationTimes))
	for name := range p.operationTimes {
		names = append(names, name)
	}
	p.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		s, _ := p.Summary(name)
		log.Info("profile summary",
			zap.String("name", name),
			zap.Int64("count", s.Count),
			zap.Duration("avg", s.Average()),
			zap.Duration("min", s.MinTime),
			zap.Duration("max", s.MaxTime),
		)
	}
}
