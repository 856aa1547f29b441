package celestial

import (
	"sync"
	"sync/atomic"

	"github.com/annel0/celestial/internal/logging"
)

// Publisher получает полный набор автоматов тиров после каждого смены суток.
// Транспорт до наблюдателей — забота реализации.
type Publisher interface {
	PublishIterations(iterations []IterationState)
}

// PublisherFunc адаптер функции к Publisher.
type PublisherFunc func(iterations []IterationState)

func (f PublisherFunc) PublishIterations(iterations []IterationState) { f(iterations) }

// NopPublisher ничего не рассылает.
type NopPublisher struct{}

func (NopPublisher) PublishIterations([]IterationState) {}

// Hooks необязательные обратные вызовы для метрик и событий.
// Вызываются на потоке OnTick после снятия блокировки.
type Hooks struct {
	OnDayAdvance    func(from, to int64)
	OnRewind        func(day int64)
	OnEclipseChange func(kind EclipseKind, active bool)
}

// Option настройка Handler.
type Option func(*Handler)

// WithHooks задаёт обратные вызовы.
func WithHooks(hooks Hooks) Option {
	return func(h *Handler) { h.hooks = hooks }
}

// Handler оркестратор небесной механики одного мира.
//
// OnTick вызывается ровно одним потоком (тиком мира). Остальные методы
// безопасны для чтения из любых горутин: снимок распределения публикуется
// атомарной заменой указателя.
type Handler struct {
	reg       *Registry
	publisher Publisher
	hooks     Hooks

	mu             sync.RWMutex
	seedInit       bool // -1 тоже допустимый сид, поэтому отдельный флаг
	savedSeed      int64
	scheduler      *DayScheduler
	lastTrackedDay int64
	eclipses       EclipseTracker
	iterations     []IterationState

	distribution atomic.Pointer[Distribution]
}

// NewHandler создаёт оркестратор. publisher может быть nil.
func NewHandler(reg *Registry, publisher Publisher, opts ...Option) *Handler {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	h := &Handler{
		reg:            reg,
		publisher:      publisher,
		lastTrackedDay: -1,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnTick обрабатывает один тик мира.
func (h *Handler) OnTick(worldTime int64, seed int64) {
	h.mu.Lock()

	if !h.seedInit {
		h.savedSeed = seed
		h.seedInit = true
	}
	if h.scheduler == nil {
		h.scheduler = NewDayScheduler(h.reg, h.savedSeed)
	}

	prevSolar := h.eclipses.Solar().Active
	prevLunar := h.eclipses.Lunar().Active
	h.eclipses.Update(worldTime)
	solarChanged := prevSolar != h.eclipses.Solar().Active
	lunarChanged := prevLunar != h.eclipses.Lunar().Active

	days := worldTime / TicksPerDay
	from := h.lastTrackedDay
	diff := days - from
	h.lastTrackedDay = days

	rewound := false
	switch {
	case diff > 0:
		h.scheduler.Advance(diff)
	case diff < 0:
		h.scheduler.Reset(h.savedSeed)
		h.scheduler.Advance(days + 1)
		rewound = true
	}

	var published []IterationState
	if diff != 0 {
		h.iterations = h.scheduler.Iterations()
		h.distribution.Store(ComputeDistribution(h.reg, days, h.iterations))
		published = make([]IterationState, len(h.iterations))
		copy(published, h.iterations)
	}
	solarActive := h.eclipses.Solar().Active
	lunarActive := h.eclipses.Lunar().Active

	h.mu.Unlock()

	if solarChanged && h.hooks.OnEclipseChange != nil {
		h.hooks.OnEclipseChange(SolarEclipse, solarActive)
	}
	if lunarChanged && h.hooks.OnEclipseChange != nil {
		h.hooks.OnEclipseChange(LunarEclipse, lunarActive)
	}
	if diff == 0 {
		return
	}

	if rewound {
		logging.Debug("🌌 Время мира ушло назад (%d → %d), расписание пересчитано с нуля", from, days)
		if h.hooks.OnRewind != nil {
			h.hooks.OnRewind(days)
		}
	} else {
		logging.Trace("🌌 Смена суток %d → %d", from, days)
		if h.hooks.OnDayAdvance != nil {
			h.hooks.OnDayAdvance(from, days)
		}
	}
	h.publisher.PublishIterations(published)
}

// CurrentMoonPhase фаза луны последних отслеженных суток.
func (h *Handler) CurrentMoonPhase() MoonPhase {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return MoonPhaseForDay(h.lastTrackedDay)
}

// CurrentDay последние отслеженные сутки; -1 до первого тика.
func (h *Handler) CurrentDay() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastTrackedDay
}

// CurrentDistribution сила созвездия; 0 пока снимка нет или созвездие неизвестно.
func (h *Handler) CurrentDistribution(c Constellation) float64 {
	d := h.distribution.Load()
	if d == nil {
		return 0
	}
	return d.Charge(c)
}

// Distribution последний снимок или nil.
func (h *Handler) Distribution() *Distribution {
	return h.distribution.Load()
}

func (h *Handler) SolarEclipse() EclipseState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.eclipses.Solar()
}

func (h *Handler) LunarEclipse() EclipseState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.eclipses.Lunar()
}

// Iterations копия последнего опубликованного набора автоматов.
func (h *Handler) Iterations() []IterationState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]IterationState, len(h.iterations))
	copy(out, h.iterations)
	return out
}

// Registry реестр тиров оркестратора.
func (h *Handler) Registry() *Registry { return h.reg }
