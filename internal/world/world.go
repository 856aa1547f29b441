package world

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/celestial/internal/cache"
	"github.com/annel0/celestial/internal/celestial"
	"github.com/annel0/celestial/internal/eventbus"
	"github.com/annel0/celestial/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrNegativeTime время мира не бывает отрицательным.
var ErrNegativeTime = errors.New("world time must not be negative")

// Options параметры менеджера мира.
type Options struct {
	ID             string
	Seed           int64
	StartTime      int64
	TickInterval   time.Duration
	MaxCatchUpDays int64 // 0 — без ограничения

	Registerer prometheus.Registerer // nil — глобальный регистр
	Tracer     trace.Tracer          // nil — otel.Tracer("celestial/world")
	Store      cache.SnapshotStore   // nil — сводки не кешируются
	Bus        eventbus.EventBus     // nil — глобальная шина eventbus.Publish
}

// expiringStore хранилище, у записей которого есть срок жизни.
type expiringStore interface {
	TTL() time.Duration
}

// WorldManager ведёт часы мира и кормит небесную механику тиками.
//
// Тики обрабатывает один поток: Run или Step, но не оба одновременно.
// SetTime можно вызывать откуда угодно, новое время применяется
// на следующем тике в потоке, который ведёт часы.
type WorldManager struct {
	id             string
	seed           int64
	tickInterval   time.Duration
	maxCatchUpDays int64

	handler   *celestial.Handler
	worldTime atomic.Int64
	ticked    bool // первый тик обрабатывает StartTime без инкремента

	tickMu sync.Mutex // сериализует Run и Step

	pendingMu sync.Mutex
	pending   *int64

	// сводка перезаписывается при смене суток, смене затмения
	// и по прошествии половины срока жизни записи в кеше
	reportDirty  bool
	lastReport   time.Time
	refreshAfter time.Duration

	metrics *clockMetrics
	tracer  trace.Tracer
	store   cache.SnapshotStore
	bus     eventbus.EventBus
	log     *logging.Logger
}

// NewWorldManager создаёт менеджер мира и его небесный оркестратор.
func NewWorldManager(opts Options, reg *celestial.Registry, publisher celestial.Publisher) *WorldManager {
	if opts.ID == "" {
		opts.ID = "overworld"
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 50 * time.Millisecond
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("celestial/world")
	}

	wm := &WorldManager{
		id:             opts.ID,
		seed:           opts.Seed,
		tickInterval:   opts.TickInterval,
		maxCatchUpDays: opts.MaxCatchUpDays,
		metrics:        newClockMetrics(opts.Registerer),
		tracer:         opts.Tracer,
		store:          opts.Store,
		bus:            opts.Bus,
		log:            logging.GetWorldLogger(),
	}
	if es, ok := opts.Store.(expiringStore); ok && es.TTL() > 0 {
		wm.refreshAfter = es.TTL() / 2
	}
	wm.worldTime.Store(opts.StartTime)
	wm.handler = celestial.NewHandler(reg, publisher, celestial.WithHooks(wm.hooks()))
	return wm
}

// Run ведёт часы до отмены ctx: один тик мира за интервал.
func (wm *WorldManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(wm.tickInterval)
	defer ticker.Stop()

	wm.log.Info("🌍 Мир %s запущен: seed=%d, time=%d, tick=%v", wm.id, wm.seed, wm.Time(), wm.tickInterval)
	for {
		select {
		case <-ctx.Done():
			wm.log.Info("🌍 Мир %s остановлен на времени %d", wm.id, wm.Time())
			return ctx.Err()
		case <-ticker.C:
			wm.tickMu.Lock()
			wm.processTick(ctx)
			wm.tickMu.Unlock()
		}
	}
}

// Step синхронно обрабатывает n тиков.
func (wm *WorldManager) Step(ctx context.Context, n int) {
	wm.tickMu.Lock()
	defer wm.tickMu.Unlock()
	for i := 0; i < n; i++ {
		wm.processTick(ctx)
	}
}

// SetTime планирует установку времени мира. Переход назад пересчитывает
// расписание с нуля; слишком далёкий переход вперёд обрезается до MaxCatchUpDays.
func (wm *WorldManager) SetTime(t int64) error {
	if t < 0 {
		return ErrNegativeTime
	}
	wm.pendingMu.Lock()
	wm.pending = &t
	wm.pendingMu.Unlock()
	return nil
}

// Time текущее время мира в тиках.
func (wm *WorldManager) Time() int64 { return wm.worldTime.Load() }

func (wm *WorldManager) ID() string { return wm.id }
func (wm *WorldManager) Seed() int64 { return wm.seed }
func (wm *WorldManager) Handler() *celestial.Handler { return wm.handler }
func (wm *WorldManager) TickInterval() time.Duration { return wm.tickInterval }
func (wm *WorldManager) Store() cache.SnapshotStore { return wm.store }
func (wm *WorldManager) Registry() *celestial.Registry { return wm.handler.Registry() }

// processTick обрабатывает один глобальный тик.
func (wm *WorldManager) processTick(ctx context.Context) {
	t := wm.nextTime()
	wm.worldTime.Store(t)
	wm.metrics.worldTime.Set(float64(t))

	prevDay := wm.handler.CurrentDay()
	if t/celestial.TicksPerDay == prevDay {
		wm.handler.OnTick(t, wm.seed)
		if wm.reportDirty || wm.reportExpiring() {
			if err := wm.storeReport(ctx); err != nil {
				wm.log.Warn("🌍 Не удалось обновить сводку неба мира %s: %v", wm.id, err)
			}
		}
		return
	}

	ctx, span := wm.tracer.Start(ctx, "celestial.day_advance", trace.WithAttributes(
		attribute.String("celestial.world", wm.id),
		attribute.Int64("celestial.from_day", prevDay),
		attribute.Int64("celestial.to_day", t/celestial.TicksPerDay),
	))
	defer span.End()

	wm.handler.OnTick(t, wm.seed)

	day := wm.handler.CurrentDay()
	wm.metrics.day.Set(float64(day))
	span.SetAttributes(attribute.String("celestial.moon_phase", wm.handler.CurrentMoonPhase().String()))

	if err := wm.storeReport(ctx); err != nil {
		span.RecordError(err)
		wm.log.Warn("🌍 Не удалось сохранить сводку неба мира %s: %v", wm.id, err)
	}
}

func (wm *WorldManager) reportExpiring() bool {
	return wm.refreshAfter > 0 && time.Since(wm.lastReport) >= wm.refreshAfter
}

// storeReport записывает текущую сводку. Неудачная запись повторяется
// по истечении refreshAfter.
func (wm *WorldManager) storeReport(ctx context.Context) error {
	wm.reportDirty = false
	wm.lastReport = time.Now()
	if wm.store == nil {
		return nil
	}
	storeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return wm.store.PutReport(storeCtx, wm.id, wm.handler.Report())
}

// nextTime применяет отложенный SetTime или продвигает время на тик.
func (wm *WorldManager) nextTime() int64 {
	cur := wm.worldTime.Load()

	wm.pendingMu.Lock()
	pending := wm.pending
	wm.pending = nil
	wm.pendingMu.Unlock()

	if pending == nil {
		if !wm.ticked {
			wm.ticked = true
			return cur
		}
		return cur + 1
	}
	wm.ticked = true
	return wm.clamp(cur, *pending)
}

// clamp ограничивает переход вперёд maxCatchUpDays сутками, сохраняя время суток.
func (wm *WorldManager) clamp(cur, target int64) int64 {
	if wm.maxCatchUpDays <= 0 || target <= cur {
		return target
	}
	curDay := cur / celestial.TicksPerDay
	targetDay := target / celestial.TicksPerDay
	if targetDay-curDay <= wm.maxCatchUpDays {
		return target
	}
	clamped := (curDay+wm.maxCatchUpDays)*celestial.TicksPerDay + target%celestial.TicksPerDay
	wm.log.Warn("🌍 Переход времени %d → %d превышает %d суток, ограничен до %d",
		cur, target, wm.maxCatchUpDays, clamped)
	return clamped
}
