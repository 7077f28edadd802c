package sim

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jwmdev/edgesim/model"
)

// Control exposes per-run tunables a caller can adjust while a Runner is
// in flight (mirrors the bus simulator's connection-scoped Control).
type Control interface {
	Speed() float64
}

// StaticControl implements Control with a fixed, clamped playback speed.
type StaticControl struct {
	SpeedMult float64
}

func (s StaticControl) Speed() float64 {
	switch {
	case s.SpeedMult <= 0:
		return 1
	case s.SpeedMult > 100:
		return 100
	default:
		return s.SpeedMult
	}
}

// RunOptions configures a Runner. Steps <= 0 means run until Stop is
// called. TickDuration <= 0 means advance as fast as possible with no
// pacing at all (suitable for batch/headless runs).
type RunOptions struct {
	Steps        int
	TickDuration time.Duration
	Clock        clockwork.Clock
}

// StartRunner drives w.Step in a background goroutine and returns a
// channel of the Events it produces. stop requests an early halt; wait
// blocks until the goroutine has exited (events channel closed).
func StartRunner(w *World, opts RunOptions, ctrl Control) (events <-chan Event, stop func(), wait func()) {
	ch := make(chan Event, 256)
	w.Sink = func(e Event) { ch <- e }

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	stopCh := make(chan struct{})
	var stopOnce sync.Once
	stop = func() { stopOnce.Do(func() { close(stopCh) }) }

	var wg sync.WaitGroup
	wg.Add(1)
	wait = func() { wg.Wait() }

	go func() {
		defer wg.Done()
		defer close(ch)

		ctx := context.Background()
		for i := 0; opts.Steps <= 0 || i < opts.Steps; i++ {
			select {
			case <-stopCh:
				return
			default:
			}

			if err := w.Step(ctx); err != nil {
				slog.Error("simulation step failed, run aborted", "tick", w.Tick, "error", err)
				return
			}

			if opts.TickDuration > 0 {
				speed := 1.0
				if ctrl != nil {
					speed = ctrl.Speed()
				}
				d := time.Duration(float64(opts.TickDuration) / speed)
				select {
				case <-clock.After(d):
				case <-stopCh:
					return
				}
			}
		}

		finished, dropped := 0, 0
		for _, p := range w.Packets {
			switch p.Status {
			case model.PacketFinished:
				finished++
			case model.PacketDropped:
				dropped++
			}
		}
		ch <- DoneEvent{Steps: w.Tick, Finished: finished, Dropped: dropped}
	}()

	return ch, stop, wait
}

// RunN advances w by exactly n ticks synchronously, with no pacing and no
// event channel; useful for tests and batch reports that only want the
// final World state.
func RunN(ctx context.Context, w *World, n int) error {
	for i := 0; i < n; i++ {
		if err := w.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}
