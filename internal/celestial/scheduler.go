package celestial

import "math/rand"

// DayScheduler продвигает автоматы тиров по игровым суткам.
// Все случайные решения берутся из одного потока, засеянного сидом мира,
// поэтому результат зависит только от (seed, количество шагов).
type DayScheduler struct {
	reg        *Registry
	seed       int64
	rng        *rand.Rand
	iterations map[int]*TierIteration // по Tier.Level
	day        int64                  // последние смоделированные сутки; -1 до первого шага
}

// NewDayScheduler создаёт планировщик с потоком, засеянным seed.
func NewDayScheduler(reg *Registry, seed int64) *DayScheduler {
	s := &DayScheduler{reg: reg}
	s.Reset(seed)
	return s
}

// Reset пересевает поток и забывает все автоматы тиров.
func (s *DayScheduler) Reset(seed int64) {
	s.seed = seed
	s.rng = rand.New(rand.NewSource(seed))
	s.iterations = make(map[int]*TierIteration, s.reg.Len())
	s.day = -1
}

// Advance моделирует n суток подряд. n <= 0 ничего не делает.
func (s *DayScheduler) Advance(n int64) {
	for i := int64(0); i < n; i++ {
		s.step(s.day + 1)
	}
}

// step один игровой день. Условия появления считаются для моделируемых суток.
func (s *DayScheduler) step(day int64) {
	s.day = day
	phase := MoonPhaseForDay(day)
	solar := IsSolarEclipseDay(day)
	lunar := IsLunarEclipseDay(day)

	for _, ti := range s.iterations {
		ti.NextDay(phase, solar, lunar)
	}

	// Порядок обхода важен: поток общий, тиры тянут из него по возрастанию.
	for _, t := range s.reg.AscendingTiers() {
		ti, ok := s.iterations[t.Level]
		if !ok {
			ti = NewTierIteration(t)
			s.iterations[t.Level] = ti
		}

		if ti.IsShowing() {
			continue
		}
		if ti.ShouldShow(phase, solar, lunar) && s.rng.Float64() < t.ShowupChance {
			ti.SetShowing()
		}
	}
}

// Day последние смоделированные сутки.
func (s *DayScheduler) Day() int64 { return s.day }

// Seed текущий сид потока.
func (s *DayScheduler) Seed() int64 { return s.seed }

// Iteration возвращает автомат тира, если он уже создан.
func (s *DayScheduler) Iteration(level int) (*TierIteration, bool) {
	ti, ok := s.iterations[level]
	return ti, ok
}

// Iterations снимки всех созданных автоматов по возрастанию тиров.
func (s *DayScheduler) Iterations() []IterationState {
	out := make([]IterationState, 0, len(s.iterations))
	for _, t := range s.reg.AscendingTiers() {
		if ti, ok := s.iterations[t.Level]; ok {
			out = append(out, ti.Snapshot())
		}
	}
	return out
}
