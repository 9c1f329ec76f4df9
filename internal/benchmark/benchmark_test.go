package benchmark

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuite_AddAndNames(t *testing.T) {
	s := NewSuite()
	assert.Empty(t, s.Names())

	s.Add("a", func(context.Context) error { return nil })
	s.Add("b", func(context.Context) error { return nil })
	s.Add("a", func(context.Context) error { return errors.New("replaced") })

	assert.Equal(t, []string{"a", "b"}, s.Names())
	assert.Error(t, s.Run(context.Background(), "a", 1).Err)
}

func TestSuite_Run(t *testing.T) {
	s := NewSuite()
	s.Add("sleep", func(context.Context) error {
		time.Sleep(time.Millisecond)
		return nil
	})
	s.Add("fail", func(context.Context) error { return errors.New("test error") })

	res := s.Run(context.Background(), "sleep", 5)
	require.NoError(t, res.Err)
	assert.Equal(t, 5, res.Iterations)
	assert.GreaterOrEqual(t, res.Min, time.Millisecond)
	assert.LessOrEqual(t, res.Min, res.P50)
	assert.LessOrEqual(t, res.P50, res.P95)
	assert.LessOrEqual(t, res.P95, res.Max)
	assert.Equal(t, res.Total/5, res.Mean)

	res = s.Run(context.Background(), "fail", 3)
	require.Error(t, res.Err)
	assert.Equal(t, 0, res.Iterations)
	assert.Contains(t, res.String(), "ERROR - test error")

	res = s.Run(context.Background(), "missing", 1)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "not found")

	assert.Len(t, s.Results(), 3)
}

func TestSuite_RunAll(t *testing.T) {
	s := NewSuite()
	calls := map[string]int{}
	for _, name := range []string{"x", "y", "z"} {
		s.Add(name, func(context.Context) error {
			calls[name]++
			return nil
		})
	}

	results := s.RunAll(context.Background(), 2)
	require.Len(t, results, 3)
	assert.Equal(t, map[string]int{"x": 2, "y": 2, "z": 2}, calls)
	assert.Equal(t, "y", results[1].Name)
}

func TestSuite_RunAllCancelled(t *testing.T) {
	s := NewSuite()
	s.Add("x", func(context.Context) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, s.RunAll(ctx, 1))
}

func TestMeasure_InvalidIterations(t *testing.T) {
	res := Measure(context.Background(), "zero", 0, func(context.Context) error { return nil })
	require.Error(t, res.Err)
}

func TestMeasure_StopsOnError(t *testing.T) {
	n := 0
	res := Measure(context.Background(), "flaky", 10, func(context.Context) error {
		n++
		if n == 4 {
			return errors.New("boom")
		}
		return nil
	})
	require.EqualError(t, res.Err, "boom")
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 4, n)
}

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Equal(t, time.Duration(6), percentile(sorted, 0.5))
	assert.Equal(t, time.Duration(10), percentile(sorted, 0.95))
	assert.Equal(t, time.Duration(10), percentile(sorted, 1))
	assert.Equal(t, time.Duration(7), percentile([]time.Duration{7}, 0.95))
}

func TestResultString(t *testing.T) {
	r := Result{Name: "letterbox", Iterations: 2, Mean: time.Millisecond, AllocatedBytes: 4096}
	s := r.String()
	assert.Contains(t, s, "letterbox: 2 iterations")
	assert.Contains(t, s, "alloc: 2 KB/op")
}

func TestMemoryStats(t *testing.T) {
	m := GetMemoryStats()
	assert.Positive(t, m.SysBytes)
	assert.Contains(t, m.String(), "Alloc:")
}
