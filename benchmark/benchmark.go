// Package benchmark - Repeated pipeline runs with latency and memory statistics.
package benchmark

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sort"
	"time"

	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/inference"
	"gonum.org/v1/gonum/stat"
)

// Options configures a benchmark run.
type Options struct {
	// Iterations is the number of measured runs.
	Iterations int `json:"iterations"`
	// Warmup is the number of unmeasured runs before the first measured one.
	Warmup int `json:"warmup"`
}

// StageMetrics summarizes one pipeline stage over all measured runs.
type StageMetrics struct {
	Mean time.Duration `json:"mean"`
	Min  time.Duration `json:"min"`
	Max  time.Duration `json:"max"`
}

// MemoryMetrics captures memory usage across the measured runs.
type MemoryMetrics struct {
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	NumGC           uint32 `json:"num_gc"`
}

// Report captures detailed performance data.
type Report struct {
	Backend         string        `json:"backend"`
	Iterations      int           `json:"iterations"`
	InputShape      []int         `json:"input_shape"`
	Preprocess      StageMetrics  `json:"preprocess"`
	Inference       StageMetrics  `json:"inference"`
	Postprocess     StageMetrics  `json:"postprocess"`
	Total           StageMetrics  `json:"total"`
	P50             time.Duration `json:"p50"`
	P95             time.Duration `json:"p95"`
	FramesPerSecond float64       `json:"frames_per_second"`
	Memory          MemoryMetrics `json:"memory"`
	NumCPU          int           `json:"num_cpu"`
}

// Run mattes img repeatedly and reports per-stage latency.
//
// Arguments:
//   - ctx: Cancels the run between iterations.
//   - p: The pipeline to measure.
//   - img: The input image, reused for every run.
//   - opts: Iteration counts.
//
// Returns:
//   - *Report: The statistics.
//   - error: common.ErrConfig for a non-positive iteration count, or the first pipeline error.
func Run(ctx context.Context, p *inference.Pipeline, img image.Image, opts Options) (*Report, error) {
	if opts.Iterations < 1 {
		return nil, fmt.Errorf("%w: iterations must be positive, got %d", common.ErrConfig, opts.Iterations)
	}

	for i := 0; i < opts.Warmup; i++ {
		if _, err := p.Matte(ctx, img); err != nil {
			return nil, err
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	timings := make([]inference.Timings, 0, opts.Iterations)
	var shape []int
	for i := 0; i < opts.Iterations; i++ {
		result, err := p.Matte(ctx, img)
		if err != nil {
			return nil, err
		}
		timings = append(timings, result.Timings)
		shape = result.InputShape
	}

	var endMem runtime.MemStats
	runtime.ReadMemStats(&endMem)

	report := Summarize(timings)
	report.Backend = p.Backend.Name()
	report.InputShape = shape
	report.NumCPU = runtime.NumCPU()
	report.Memory = MemoryMetrics{
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		HeapAllocBytes:  endMem.HeapAlloc,
		NumGC:           endMem.NumGC - startMem.NumGC,
	}
	return report, nil
}

// Summarize computes stage statistics and total latency quantiles.
func Summarize(timings []inference.Timings) *Report {
	report := &Report{Iterations: len(timings)}
	if len(timings) == 0 {
		return report
	}

	pick := func(f func(inference.Timings) time.Duration) StageMetrics {
		values := make([]float64, len(timings))
		for i, t := range timings {
			values[i] = float64(f(t))
		}
		sort.Float64s(values)
		return StageMetrics{
			Mean: time.Duration(stat.Mean(values, nil)),
			Min:  time.Duration(values[0]),
			Max:  time.Duration(values[len(values)-1]),
		}
	}
	report.Preprocess = pick(func(t inference.Timings) time.Duration { return t.Preprocess })
	report.Inference = pick(func(t inference.Timings) time.Duration { return t.Inference })
	report.Postprocess = pick(func(t inference.Timings) time.Duration { return t.Postprocess })
	report.Total = pick(inference.Timings.Total)

	totals := make([]float64, len(timings))
	for i, t := range timings {
		totals[i] = float64(t.Total())
	}
	sort.Float64s(totals)
	report.P50 = time.Duration(stat.Quantile(0.5, stat.Empirical, totals, nil))
	report.P95 = time.Duration(stat.Quantile(0.95, stat.Empirical, totals, nil))
	if report.Total.Mean > 0 {
		report.FramesPerSecond = float64(time.Second) / float64(report.Total.Mean)
	}
	return report
}
