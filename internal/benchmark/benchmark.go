// Package benchmark times the detection stages and the end-to-end pipeline.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"slices"
	"sync"
	"time"
)

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  `json:"alloc_bytes"`
	TotalAllocBytes uint64  `json:"total_alloc_bytes"`
	SysBytes        uint64  `json:"sys_bytes"`
	NumGC           uint32  `json:"num_gc"`
	GCCPUFraction   float64 `json:"gc_cpu_fraction"`
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024,
		m.TotalAllocBytes/1024,
		m.SysBytes/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// Result holds the timings of one benchmark.
type Result struct {
	Name       string        `json:"name"`
	Iterations int           `json:"iterations"`
	Total      time.Duration `json:"total_ns"`
	Min        time.Duration `json:"min_ns"`
	Max        time.Duration `json:"max_ns"`
	Mean       time.Duration `json:"mean_ns"`
	P50        time.Duration `json:"p50_ns"`
	P95        time.Duration `json:"p95_ns"`

	// AllocatedBytes is the growth of cumulative heap allocation over the run.
	AllocatedBytes uint64 `json:"allocated_bytes"`

	Err error `json:"-"`
}

// String returns a formatted string representation of the result.
func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Err)
	}
	return fmt.Sprintf("%s: %d iterations, mean: %v, p50: %v, p95: %v, min: %v, max: %v, alloc: %d KB/op",
		r.Name, r.Iterations, r.Mean, r.P50, r.P95, r.Min, r.Max,
		r.AllocatedBytes/uint64(max(r.Iterations, 1))/1024)
}

// Func is one timed operation.
type Func func(ctx context.Context) error

type entry struct {
	name string
	fn   Func
}

// Suite runs a named set of benchmarks.
type Suite struct {
	mu      sync.Mutex
	entries []entry
	results []Result
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add registers fn under name. Later registrations with the same name replace
// earlier ones.
func (s *Suite) Add(name string, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].name == name {
			s.entries[i].fn = fn
			return
		}
	}
	s.entries = append(s.entries, entry{name: name, fn: fn})
}

// Names returns the registered benchmark names in registration order.
func (s *Suite) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

// Run executes the benchmark called name.
func (s *Suite) Run(ctx context.Context, name string, iterations int) Result {
	s.mu.Lock()
	idx := slices.IndexFunc(s.entries, func(e entry) bool { return e.name == name })
	var fn Func
	if idx >= 0 {
		fn = s.entries[idx].fn
	}
	s.mu.Unlock()

	if fn == nil {
		res := Result{Name: name, Err: fmt.Errorf("benchmark %q not found", name)}
		s.record(res)
		return res
	}
	res := Measure(ctx, name, iterations, fn)
	s.record(res)
	return res
}

// RunAll executes every registered benchmark in order. It stops early when ctx
// is cancelled.
func (s *Suite) RunAll(ctx context.Context, iterations int) []Result {
	out := make([]Result, 0, len(s.entries))
	for _, name := range s.Names() {
		if ctx.Err() != nil {
			break
		}
		out = append(out, s.Run(ctx, name, iterations))
	}
	return out
}

// Results returns every result recorded so far.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.results)
}

// PrintResults writes the recorded results to w.
func (s *Suite) PrintResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "\nBenchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
}

func (s *Suite) record(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

// Measure calls fn iterations times and summarises the timings. The first
// error aborts the run and is reported in Result.Err.
func Measure(ctx context.Context, name string, iterations int, fn Func) Result {
	res := Result{Name: name}
	if iterations <= 0 {
		res.Err = errors.New("iterations must be positive")
		return res
	}

	before := GetMemoryStats()
	samples := make([]time.Duration, 0, iterations)
	for range iterations {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		start := time.Now()
		err := fn(ctx)
		elapsed := time.Since(start)
		if err != nil {
			res.Err = err
			break
		}
		samples = append(samples, elapsed)
	}
	after := GetMemoryStats()

	res.Iterations = len(samples)
	res.AllocatedBytes = after.TotalAllocBytes - before.TotalAllocBytes
	summarize(&res, samples)
	return res
}

func summarize(res *Result, samples []time.Duration) {
	if len(samples) == 0 {
		return
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	for _, d := range sorted {
		res.Total += d
	}
	res.Min = sorted[0]
	res.Max = sorted[len(sorted)-1]
	res.Mean = res.Total / time.Duration(len(sorted))
	res.P50 = percentile(sorted, 0.50)
	res.P95 = percentile(sorted, 0.95)
}

// percentile reads the nearest-rank value from an ascending slice.
func percentile(sorted []time.Duration, q float64) time.Duration {
	idx := int(q*float64(len(sorted)-1) + 0.5)
	return sorted[min(idx, len(sorted)-1)]
}
