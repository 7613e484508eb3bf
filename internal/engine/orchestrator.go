// Package engine runs decision cycles: collaborators refresh the snapshot, then the core
// stages turn it into decisions and ledger updates.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cryptoagents-go/internal/metrics"
	"cryptoagents-go/internal/state"
)

// ErrCycleAborted wraps every stage failure that ended a cycle early.
var ErrCycleAborted = errors.New("engine: cycle aborted")

// Stage is one step of a cycle. It mutates the snapshot it is handed.
type Stage interface {
	Name() string
	Run(ctx context.Context, s *state.Snapshot) error
}

// Committer is implemented by stages that hold side effects back until the whole cycle
// succeeds. Commit runs after the last stage; Discard runs when the cycle aborts.
type Committer interface {
	Commit()
	Discard()
}

// Orchestrator owns a Snapshot and runs one cycle at a time against it.
// Collect stages honor cancellation; once the core stages start the cycle runs to completion.
type Orchestrator struct {
	mu      sync.Mutex
	snap    *state.Snapshot
	collect []Stage
	core    []Stage
	log     zerolog.Logger
	now     func() time.Time
	cycle   int
	closers []func() error
}

// NewOrchestrator builds an orchestrator over snap.
func NewOrchestrator(snap *state.Snapshot, collect, core []Stage, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{snap: snap, collect: collect, core: core, log: log, now: time.Now}
}

// View runs fn with the snapshot while holding the cycle lock.
func (o *Orchestrator) View(fn func(s *state.Snapshot)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(o.snap)
}

// Cycles returns how many cycles were started.
func (o *Orchestrator) Cycles() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cycle
}

// RunCycle executes every stage in order. On failure the portfolio is restored to its state
// at cycle start and the returned error wraps ErrCycleAborted.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	start := o.now()
	o.cycle++
	log := o.log.With().Int("cycle", o.cycle).Logger()
	backup := o.snap.Portfolio.Clone()

	fail := func(st Stage, err error) error {
		o.snap.Portfolio.Restore(backup)
		o.settle(log, false)
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		metrics.CycleErrorsTotal.WithLabelValues(st.Name()).Inc()
		log.Error().Err(err).Str("stage", st.Name()).Msg("cycle aborted")
		return fmt.Errorf("%w: stage %s: %v", ErrCycleAborted, st.Name(), err)
	}

	for _, st := range o.collect {
		if err := o.runStage(ctx, st, log); err != nil {
			return fail(st, err)
		}
	}
	coreCtx := context.WithoutCancel(ctx)
	for _, st := range o.core {
		if err := o.runStage(coreCtx, st, log); err != nil {
			return fail(st, err)
		}
	}

	o.settle(log, true)
	finished := o.now()
	o.snap.Metadata[state.MetaCycle] = strconv.Itoa(o.cycle)
	o.snap.Metadata[state.MetaLastCycleAt] = finished.UTC().Format(time.RFC3339)
	o.snap.Touch(finished)
	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	metrics.CycleDuration.Observe(finished.Sub(start).Seconds())
	log.Info().
		Int("decisions", len(o.snap.Decisions)).
		Float64("cash", o.snap.Portfolio.Cash()).
		Dur("took", finished.Sub(start)).
		Msg("cycle complete")
	return nil
}

// settle commits or discards every stage holding deferred effects. The cycle outcome is
// already decided, so a panic here is logged and swallowed.
func (o *Orchestrator) settle(log zerolog.Logger, ok bool) {
	for _, st := range append(append([]Stage{}, o.collect...), o.core...) {
		c, isCommitter := st.(Committer)
		if !isCommitter {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("stage", st.Name()).Interface("panic", r).Msg("settle panic")
				}
			}()
			if ok {
				c.Commit()
			} else {
				c.Discard()
			}
		}()
	}
}

func (o *Orchestrator) runStage(ctx context.Context, st Stage, log zerolog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("stage", st.Name()).Str("stack", string(debug.Stack())).Msg("stage panic")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	log.Debug().Str("stage", st.Name()).Msg("stage start")
	return st.Run(ctx, o.snap)
}

// Run executes cycles until the count is reached (cycles <= 0 runs until ctx ends), waiting
// delay between them. Aborted cycles are logged and the loop continues. Cancellation is only
// observed between cycles.
func (o *Orchestrator) Run(ctx context.Context, cycles int, delay time.Duration) error {
	for i := 0; cycles <= 0 || i < cycles; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleAborted) {
			return err
		}
		if cycles > 0 && i == cycles-1 {
			break
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return nil
}

// OnClose registers cleanup to run in Close.
func (o *Orchestrator) OnClose(fn func() error) { o.closers = append(o.closers, fn) }

// Close releases resources acquired while wiring.
func (o *Orchestrator) Close() error {
	var errs []error
	for _, fn := range o.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
