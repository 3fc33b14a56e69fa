// Package main provides the Scanrev command-line tool.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"

	"github.com/scanrev-ml/scanrev/autodiff"
	"github.com/scanrev-ml/scanrev/backend/cpu"
	"github.com/scanrev-ml/scanrev/loop"
	"github.com/scanrev-ml/scanrev/state"
	"github.com/scanrev-ml/scanrev/tensor"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("Scanrev %s\n", version)
	case "bench":
		bench(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("Scanrev - checkpointed reverse-mode loops for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  bench      Report checkpoint memory/recompute trade-offs across step counts")
}

// bench runs a damped-oscillator loop across a geometric range of step counts
// and reports the cost counters for the selected schedule.
func bench(args []string) {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	maxSteps := fs.Int("max_steps", 4096, "largest step count benchmarked")
	dim := fs.Int("dim", 1024, "elements per state leaf")
	scheduleName := fs.String("schedule", "bisection", "checkpoint schedule: bisection or chunked")
	leafSpan := fs.Int("leaf_span", loop.DefaultLeafSpan, "bisection leaf granularity")
	stride := fs.Int("stride", 0, "chunked stride (0 means ceil(sqrt(n)))")
	must.M(fs.Parse(args))

	var sched loop.Schedule
	switch *scheduleName {
	case "bisection":
		sched = loop.Bisection(*leafSpan)
	case "chunked":
		sched = loop.Chunked(*stride)
	default:
		fmt.Fprintf(os.Stderr, "unknown schedule %q\n", *scheduleName)
		os.Exit(2)
	}

	backend := autodiff.New(cpu.New())
	omega := must.M1(tensor.Full(tensor.Shape{*dim}, 0.03, tensor.Float64, tensor.CPU))

	// x' = x + dt*v, v' = v - dt*omega*x: a step with state-to-state and
	// parameter-to-state gradient flow.
	step := func(s *state.State) *state.State {
		x, v := s.Get("x"), s.Get("v")
		const dt = 0.01
		nx := backend.Add(x, backend.MulScalar(v, dt))
		nv := backend.Sub(v, backend.MulScalar(backend.Mul(omega, x), dt))
		return state.New().Set("x", nx).Set("v", nv)
	}

	var stepCounts []int
	for n := 16; n <= *maxSteps; n *= 4 {
		stepCounts = append(stepCounts, n)
	}

	bar := progressbar.Default(int64(len(stepCounts)), "bench")
	fmt.Printf("\n%-8s %-10s %-10s %-12s %-12s %-10s\n",
		"steps", "stored", "peak", "recomputed", "step-calls", "peak-mem")

	for _, n := range stepCounts {
		s0 := state.New().
			Set("x", must.M1(tensor.Full(tensor.Shape{*dim}, 1, tensor.Float64, tensor.CPU))).
			Set("v", must.M1(tensor.NewRaw(tensor.Shape{*dim}, tensor.Float64, tensor.CPU)))
		cotangent := s0.Map(func(t *tensor.RawTensor) *tensor.RawTensor {
			return tensor.FullLike(t, 1)
		})

		l := must.M1(loop.NewCheckpointed(backend, step, n,
			loop.WithSchedule(sched),
			loop.WithParameters(omega)))
		must.M1(l.Backward(s0, cotangent))

		stats := l.Stats()
		peakBytes := uint64(stats.PeakLiveCheckpoints * s0.ByteSize())
		fmt.Printf("%-8d %-10d %-10d %-12d %-12d %-10s\n",
			n, stats.CheckpointsStored, stats.PeakLiveCheckpoints,
			stats.RecomputedSteps, stats.StepCalls, humanize.Bytes(peakBytes))
		must.M(bar.Add(1))
	}
	must.M(bar.Finish())
}
