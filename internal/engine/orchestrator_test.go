package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/paper"
	"cryptoagents-go/internal/signal"
	"cryptoagents-go/internal/state"
)

type fakeStage struct {
	name  string
	calls *[]string
	fn    func(ctx context.Context, s *state.Snapshot) error
}

func (f fakeStage) Name() string { return f.name }

func (f fakeStage) Run(ctx context.Context, s *state.Snapshot) error {
	*f.calls = append(*f.calls, f.name)
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx, s)
}

func TestRunCycleOrderAndMetadata(t *testing.T) {
	var calls []string
	snap := state.New("KRW")
	o := NewOrchestrator(snap,
		[]Stage{fakeStage{name: "a", calls: &calls}, fakeStage{name: "b", calls: &calls}},
		[]Stage{fakeStage{name: "c", calls: &calls}},
		zerolog.Nop())
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return fixed }

	require.NoError(t, o.RunCycle(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, calls)
	assert.Equal(t, "1", snap.Metadata[state.MetaCycle])
	assert.Equal(t, "2024-03-01T12:00:00Z", snap.Metadata[state.MetaLastCycleAt])
	assert.Equal(t, fixed, snap.LastUpdated)
}

func TestRunCycleRestoresPortfolioOnError(t *testing.T) {
	var calls []string
	snap := state.New("KRW")
	snap.Portfolio.SetBalance("KRW", 1000)
	boom := errors.New("boom")
	o := NewOrchestrator(snap, nil, []Stage{
		fakeStage{name: "spend", calls: &calls, fn: func(_ context.Context, s *state.Snapshot) error {
			s.Portfolio.SetBalance("KRW", 10)
			s.Portfolio.SetPosition("BTC", 1, 990)
			return nil
		}},
		fakeStage{name: "fail", calls: &calls, fn: func(context.Context, *state.Snapshot) error { return boom }},
		fakeStage{name: "never", calls: &calls},
	}, zerolog.Nop())

	err := o.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCycleAborted)
	assert.Contains(t, err.Error(), "fail")
	assert.Equal(t, []string{"spend", "fail"}, calls)
	assert.Equal(t, 1000.0, snap.Portfolio.Cash())
	_, held := snap.Portfolio.Position("BTC")
	assert.False(t, held)
	assert.Empty(t, snap.Metadata[state.MetaCycle])
}

func TestRunCycleRecoversPanic(t *testing.T) {
	var calls []string
	snap := state.New("KRW")
	snap.Portfolio.SetBalance("KRW", 500)
	o := NewOrchestrator(snap, nil, []Stage{
		fakeStage{name: "panicky", calls: &calls, fn: func(_ context.Context, s *state.Snapshot) error {
			s.Portfolio.SetBalance("KRW", 0)
			panic("unexpected")
		}},
	}, zerolog.Nop())

	err := o.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleAborted)
	assert.Equal(t, 500.0, snap.Portfolio.Cash())
}

func TestCoreStagesIgnoreCancellation(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var coreErr error
	o := NewOrchestrator(state.New("KRW"),
		[]Stage{fakeStage{name: "collect", calls: &calls, fn: func(context.Context, *state.Snapshot) error {
			cancel()
			return nil
		}}},
		[]Stage{fakeStage{name: "core", calls: &calls, fn: func(ctx context.Context, _ *state.Snapshot) error {
			coreErr = ctx.Err()
			return nil
		}}},
		zerolog.Nop())

	require.NoError(t, o.RunCycle(ctx))
	assert.NoError(t, coreErr)
	assert.Equal(t, []string{"collect", "core"}, calls)
}

func TestRunCycleRejectsCancelledContext(t *testing.T) {
	var calls []string
	o := NewOrchestrator(state.New("KRW"), []Stage{fakeStage{name: "a", calls: &calls}}, nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, o.RunCycle(ctx), context.Canceled)
	assert.Empty(t, calls)
	assert.Zero(t, o.Cycles())
}

func TestRunContinuesPastAbortedCycles(t *testing.T) {
	var calls []string
	n := 0
	o := NewOrchestrator(state.New("KRW"), []Stage{fakeStage{name: "flaky", calls: &calls, fn: func(context.Context, *state.Snapshot) error {
		n++
		if n == 2 {
			return errors.New("venue down")
		}
		return nil
	}}}, nil, zerolog.Nop())

	require.NoError(t, o.Run(context.Background(), 3, 0))
	assert.Equal(t, 3, o.Cycles())
	assert.Len(t, calls, 3)
}

func TestRunStopsOnCancelDuringDelay(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	o := NewOrchestrator(state.New("KRW"), []Stage{fakeStage{name: "a", calls: &calls, fn: func(context.Context, *state.Snapshot) error {
		cancel()
		return nil
	}}}, nil, zerolog.Nop())

	err := o.Run(ctx, 0, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, o.Cycles())
}

func TestCloseRunsClosers(t *testing.T) {
	o := NewOrchestrator(state.New("KRW"), nil, nil, zerolog.Nop())
	closed := 0
	o.OnClose(func() error { closed++; return nil })
	o.OnClose(func() error { closed++; return errors.New("close failed") })

	assert.EqualError(t, o.Close(), "close failed")
	assert.Equal(t, 2, closed)
}

type panicRecorder struct{}

func (panicRecorder) Record(execution.Transaction) { panic("disk gone") }

func seededLedgerSnapshot() *state.Snapshot {
	snap := state.New("KRW")
	snap.Market["BTC"] = signal.Ticker{Symbol: "BTC", Price: 100}
	snap.Decisions = []execution.Decision{{Symbol: "BTC", Action: execution.Buy, Confidence: 1}}
	return snap
}

func TestAbortedFirstCycleSeedsCashOnRetry(t *testing.T) {
	var calls []string
	snap := seededLedgerSnapshot()
	fills := paper.NewLedger(8)
	manager := paper.NewManager(paper.Config{InitialCash: 1000, TradeFraction: 0.5, MinTradeValue: 1}, zerolog.Nop(), paper.WithRecorder(fills))
	first := true
	o := NewOrchestrator(snap, nil, []Stage{
		&PortfolioStage{Manager: manager},
		fakeStage{name: "after", calls: &calls, fn: func(context.Context, *state.Snapshot) error {
			if first {
				first = false
				panic("late failure")
			}
			return nil
		}},
	}, zerolog.Nop())

	require.ErrorIs(t, o.RunCycle(context.Background()), ErrCycleAborted)
	assert.Zero(t, snap.Portfolio.Cash())
	assert.Empty(t, snap.Portfolio.History())
	assert.Zero(t, fills.Len(), "rolled back fills must not be recorded")

	require.NoError(t, o.RunCycle(context.Background()))
	assert.InDelta(t, 500.0, snap.Portfolio.Cash(), 1e-9)
	pos, held := snap.Portfolio.Position("BTC")
	require.True(t, held)
	assert.InDelta(t, 5.0, pos.Quantity, 1e-9)
	assert.Len(t, snap.Portfolio.History(), 1)
	assert.Equal(t, 1, fills.Len())
}

func TestRecorderPanicAfterCommitKeepsCycle(t *testing.T) {
	snap := seededLedgerSnapshot()
	manager := paper.NewManager(paper.Config{InitialCash: 1000, TradeFraction: 0.5, MinTradeValue: 1}, zerolog.Nop(), paper.WithRecorder(panicRecorder{}))
	o := NewOrchestrator(snap, nil, []Stage{&PortfolioStage{Manager: manager}}, zerolog.Nop())

	require.NoError(t, o.RunCycle(context.Background()))
	assert.InDelta(t, 500.0, snap.Portfolio.Cash(), 1e-9)
	assert.Equal(t, "1", snap.Metadata[state.MetaCycle])
}
