// Command motionsim drives the motion core over a simulated step-timer
// driver: it submits a short rectangular toolpath, engages and releases a
// feedhold partway through, ticks the dispatcher to completion, and prints
// how many step programs the timer.SimDriver recorded, along with periodic
// Prometheus metric snapshots gathered from a background goroutine.
//
// Run with: go run ./cmd/motionsim
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Leealpha1/TinyG/internal/motion"
	"github.com/Leealpha1/TinyG/internal/motion/block"
	"github.com/Leealpha1/TinyG/internal/motion/config"
	"github.com/Leealpha1/TinyG/internal/motion/logging"
	"github.com/Leealpha1/TinyG/internal/motion/metrics"
	"github.com/Leealpha1/TinyG/internal/motion/timer"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.Default()
	cfg.RingSize = 16

	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
	log := logging.NewZerologLogger(zl, logging.LevelInfo)

	drv := timer.NewSimDriver()
	met := metrics.New()
	registry := prometheus.NewRegistry()
	if err := registry.Register(met); err != nil {
		fmt.Fprintf(os.Stderr, "register metrics: %v\n", err)
		os.Exit(1)
	}

	mc := motion.New(motion.Config{
		Motion:         cfg,
		Driver:         drv,
		Logger:         log,
		Metrics:        met,
		StatusInterval: 200,
		OnBackpressure: func() {
			fmt.Println("backpressure: ring full, producer would yield here")
		},
	})
	mc.SetSpindleCallback(func(rpm float64) {
		fmt.Printf("spindle: %.0f rpm\n", rpm)
	})

	points := []block.Vector{
		{0: 50},
		{0: 50, 1: 30},
		{0: 0, 1: 30},
		{},
	}
	const feedMMPerMin = 3000.0

	if code := mc.SubmitSpindleSpeed(12000); code != 0 {
		fmt.Fprintf(os.Stderr, "submit_spindle_speed: %v\n", code)
	}
	for _, p := range points {
		length := vecLength(p, mc.GetPlanPosition())
		if length == 0 {
			continue
		}
		if code := mc.SubmitAline(p, length/feedMMPerMin); code != 0 {
			fmt.Fprintf(os.Stderr, "submit_aline: %v\n", code)
			os.Exit(1)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	// executor: the Tick loop a real front-end would run off an ISR or a
	// dedicated driver goroutine. Engages a feedhold once the path is well
	// underway, then releases it as soon as it's confirmed held.
	g.Go(func() error {
		defer cancel()
		heldOnce, released := false, false
		ticks := 0
		for mc.IsBusy() {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			mc.Tick()
			ticks++

			if !heldOnce && ticks == 500 {
				fmt.Println("engaging feedhold mid-path")
				mc.Feedhold()
			}
			if !released && mc.FeedholdState() == 4 { // HoldHeld
				heldOnce, released = true, true
				fmt.Println("hold confirmed, releasing")
				mc.CycleStart()
			}
			if mc.StatusDue() {
				fmt.Printf("status: pos=%s busy=%v\n", motion.FormatAxisValue(mc.GetRuntimePosition(0)), mc.IsBusy())
			}
		}
		return nil
	})

	// metrics reporter: periodically gathers the registry and prints the
	// segment-prepare latency family, independent of the tick loop's pace.
	g.Go(func() error {
		t := time.NewTicker(50 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				families, err := registry.Gather()
				if err != nil {
					return fmt.Errorf("gather metrics: %w", err)
				}
				for _, f := range families {
					if f.GetName() == "tinyg_segment_prepare_seconds" {
						fmt.Printf("metrics: %s (%d series)\n", f.GetName(), len(f.GetMetric()))
					}
				}
			}
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "exited with: %v\n", err)
	}

	fmt.Printf("done: %d step programs recorded\n", len(drv.Programs))
}

func vecLength(target, from block.Vector) float64 {
	var sumSq float64
	for i := range target {
		d := target[i] - from[i]
		sumSq += d * d
	}
	return sqrt(sumSq)
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	x := v
	for i := 0; i < 40; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}
