package celestial

// Тайминги затмений в тиках мирового времени (24000 тиков = сутки).
const (
	TicksPerDay = 24000

	SolarEclipsePeriod      = 888000  // 37 суток
	SolarEclipseOffset      = 864000  // начало суток затмения внутри цикла
	SolarEclipseWindowStart = 3600    // начало активной фазы от начала суток
	SolarEclipseWindowEnd   = 8400    // конец активной фазы (не включительно)
	LunarEclipsePeriod      = 1656000 // 69 суток
	LunarEclipseOffset      = 1632000
	LunarEclipseWindowStart = 15600
	LunarEclipseWindowEnd   = 20400

	SolarEclipseHalfDuration = 2400
	LunarEclipseHalfDuration = 2400

	// EclipseDuration длина активной фазы; совпадает для обоих затмений.
	EclipseDuration = SolarEclipseHalfDuration * 2
)

// EclipseKind вид затмения.
type EclipseKind string

const (
	SolarEclipse EclipseKind = "solar"
	LunarEclipse EclipseKind = "lunar"
)

// EclipseState состояние одного затмения, пересчитывается каждый тик.
type EclipseState struct {
	Active   bool `json:"active"`    // Идёт активная фаза
	DayOf    bool `json:"day_of"`    // Сегодня сутки затмения
	Tick     int  `json:"tick"`      // Прогресс активной фазы
	PrevTick int  `json:"prev_tick"` // Прогресс на предыдущем тике
}

// Progress интерполирует прогресс фазы между двумя тиками; partial в [0,1].
// Возвращает долю пройденной активной фазы в [0,1].
func (s EclipseState) Progress(partial float64) float64 {
	if !s.Active {
		return 0
	}
	cur := float64(s.PrevTick) + float64(s.Tick-s.PrevTick)*partial
	return cur / EclipseDuration
}

// EclipseTracker считает оба затмения по мировому времени.
// Хранит только прошлый прогресс для интерполяции.
type EclipseTracker struct {
	solar EclipseState
	lunar EclipseState
}

// Update пересчитывает состояние затмений. Вызывается каждый тик,
// окна активной фазы короче суток.
func (et *EclipseTracker) Update(worldTime int64) {
	solarTime := int(worldTime%SolarEclipsePeriod) - SolarEclipseOffset
	et.solar = nextEclipseState(et.solar, solarTime, SolarEclipseWindowStart, SolarEclipseWindowEnd)

	lunarTime := int(worldTime%LunarEclipsePeriod) - LunarEclipseOffset
	et.lunar = nextEclipseState(et.lunar, lunarTime, LunarEclipseWindowStart, LunarEclipseWindowEnd)
}

func nextEclipseState(prev EclipseState, phase, start, end int) EclipseState {
	next := EclipseState{DayOf: phase > 0}
	if phase > start && phase < end {
		next.Active = true
		next.PrevTick = prev.Tick
		next.Tick = phase - start
	}
	return next
}

func (et *EclipseTracker) Solar() EclipseState { return et.solar }

func (et *EclipseTracker) Lunar() EclipseState { return et.lunar }

// IsSolarEclipseDay сутки солнечного затмения по номеру суток.
func IsSolarEclipseDay(day int64) bool {
	return floorMod(day, SolarEclipsePeriod/TicksPerDay) == SolarEclipseOffset/TicksPerDay
}

// IsLunarEclipseDay сутки лунного затмения по номеру суток.
func IsLunarEclipseDay(day int64) bool {
	return floorMod(day, LunarEclipsePeriod/TicksPerDay) == LunarEclipseOffset/TicksPerDay
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
