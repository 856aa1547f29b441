package world

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/annel0/celestial/internal/cache"
	"github.com/annel0/celestial/internal/celestial"
	"github.com/annel0/celestial/internal/eventbus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const day = celestial.TicksPerDay

type fixture struct {
	wm    *WorldManager
	store *cache.RepoSnapshotStore
	spans *tracetest.SpanRecorder
	bus   eventbus.EventBus
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	store, _ := opts.Store.(*cache.RepoSnapshotStore)
	if store == nil {
		store = cache.NewMemorySnapshotStore(0)
	}
	bus := eventbus.NewMemoryBus(64)

	opts.Registerer = prometheus.NewRegistry()
	opts.Tracer = tp.Tracer("test")
	opts.Store = store
	opts.Bus = bus
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	return &fixture{
		wm:    NewWorldManager(opts, celestial.DefaultRegistry(), nil),
		store: store,
		spans: spans,
		bus:   bus,
	}
}

func TestStepStartsAtStartTime(t *testing.T) {
	f := newFixture(t, Options{StartTime: 2*day + 10})
	ctx := context.Background()

	f.wm.Step(ctx, 1)
	assert.EqualValues(t, 2*day+10, f.wm.Time())
	assert.EqualValues(t, 2, f.wm.Handler().CurrentDay())

	f.wm.Step(ctx, 5)
	assert.EqualValues(t, 2*day+15, f.wm.Time())

	// Смена суток только на первом тике.
	ended := f.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "celestial.day_advance", ended[0].Name())
}

func TestDayChangeStoresReport(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	f.wm.Step(ctx, 1)
	require.NoError(t, f.wm.SetTime(3*day+1))
	f.wm.Step(ctx, 1)

	report, err := f.store.GetReport(ctx, f.wm.ID())
	require.NoError(t, err)
	assert.EqualValues(t, 3, report.Day)
	assert.Equal(t, celestial.MoonPhaseForDay(3), report.MoonPhase)
	assert.Equal(t, f.wm.Handler().Iterations(), report.Iterations)

	assert.Equal(t, 3.0, testutil.ToFloat64(f.wm.metrics.dayAdvances))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.wm.metrics.day))
	assert.Len(t, f.spans.Ended(), 2)
}

func TestReportRefreshedBeforeExpiry(t *testing.T) {
	f := newFixture(t, Options{Store: cache.NewMemorySnapshotStore(50 * time.Millisecond)})
	ctx := context.Background()

	f.wm.Step(ctx, 1)
	time.Sleep(100 * time.Millisecond)
	f.wm.Step(ctx, 1000)

	require.EqualValues(t, 0, f.wm.Handler().CurrentDay(), "сутки не сменились")
	report, err := f.store.GetReport(ctx, f.wm.ID())
	require.NoError(t, err)
	assert.EqualValues(t, 0, report.Day)
}

func TestEclipseChangeRefreshesReport(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.wm.SetTime(celestial.SolarEclipseOffset+celestial.SolarEclipseWindowStart-5))
	f.wm.Step(ctx, 1)

	report, err := f.store.GetReport(ctx, f.wm.ID())
	require.NoError(t, err)
	assert.False(t, report.Solar.Active)

	f.wm.Step(ctx, 10)

	report, err = f.store.GetReport(ctx, f.wm.ID())
	require.NoError(t, err)
	assert.True(t, report.Solar.Active, "сводка обновлена при начале затмения")
	assert.True(t, report.Solar.DayOf)
	assert.Len(t, f.spans.Ended(), 1, "новых суток не было")
}

func TestSetTimeBackwardRewinds(t *testing.T) {
	f := newFixture(t, Options{Seed: 7})
	ctx := context.Background()

	require.NoError(t, f.wm.SetTime(20*day))
	f.wm.Step(ctx, 1)
	require.NoError(t, f.wm.SetTime(4*day+100))
	f.wm.Step(ctx, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.wm.metrics.rewinds))

	fresh := celestial.NewHandler(celestial.DefaultRegistry(), nil)
	fresh.OnTick(4*day+100, 7)
	assert.Equal(t, fresh.Iterations(), f.wm.Handler().Iterations())
}

func TestSetTimeClampsCatchUp(t *testing.T) {
	f := newFixture(t, Options{MaxCatchUpDays: 10})
	ctx := context.Background()

	f.wm.Step(ctx, 1)
	require.NoError(t, f.wm.SetTime(100*day+5))
	f.wm.Step(ctx, 1)

	assert.EqualValues(t, 10*day+5, f.wm.Time())
	assert.EqualValues(t, 10, f.wm.Handler().CurrentDay())

	// Назад ограничение не действует.
	require.NoError(t, f.wm.SetTime(1))
	f.wm.Step(ctx, 1)
	assert.EqualValues(t, 1, f.wm.Time())
}

func TestSetTimeRejectsNegative(t *testing.T) {
	f := newFixture(t, Options{})
	assert.ErrorIs(t, f.wm.SetTime(-1), ErrNegativeTime)
}

func TestEclipseEventsPublished(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	var mu sync.Mutex
	var got []EclipseEvent
	sub, err := f.bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.TypeCelestialEclipse}},
		func(_ context.Context, ev *eventbus.Envelope) {
			var e EclipseEvent
			if ev.Decode(&e) == nil {
				mu.Lock()
				got = append(got, e)
				mu.Unlock()
			}
		})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, f.wm.SetTime(celestial.SolarEclipseOffset+celestial.SolarEclipseWindowStart+1))
	f.wm.Step(ctx, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.wm.metrics.eclipseActive.WithLabelValues("solar")))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, celestial.SolarEclipse, got[0].Kind)
	assert.True(t, got[0].Active)
	mu.Unlock()
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, Options{TickInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.wm.Run(ctx) }()

	require.Eventually(t, func() bool { return f.wm.Time() > 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run не завершился после отмены контекста")
	}
}
