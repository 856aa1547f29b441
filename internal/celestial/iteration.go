package celestial

// TierIteration суточный автомат одного тира: какое созвездие активно
// и видно ли оно сейчас. Создаётся лениво планировщиком и больше не удаляется.
type TierIteration struct {
	tier    *Tier
	counter int
	showing bool
}

// IterationState снимок TierIteration для рассылки наблюдателям.
type IterationState struct {
	Level   int           `json:"level"`
	Tier    string        `json:"tier"`
	Showing bool          `json:"showing"`
	Active  Constellation `json:"active"`
	Counter int           `json:"counter"`
}

// NewTierIteration создаёт автомат для тира; counter=0, showing=false.
func NewTierIteration(tier *Tier) *TierIteration {
	return &TierIteration{tier: tier}
}

// NextDay гасит тир только если условие появления больше не выполнено.
func (ti *TierIteration) NextDay(phase MoonPhase, dayOfSolarEclipse, dayOfLunarEclipse bool) {
	if !ti.ShouldShow(phase, dayOfSolarEclipse, dayOfLunarEclipse) {
		ti.showing = false
	}
}

// SetShowing включает тир и переводит счётчик на следующее созвездие.
func (ti *TierIteration) SetShowing() {
	ti.showing = true
	ti.counter = (ti.counter + 1) % len(ti.tier.Constellations)
}

// ShouldShow проверяет условие появления тира.
func (ti *TierIteration) ShouldShow(phase MoonPhase, dayOfSolarEclipse, dayOfLunarEclipse bool) bool {
	return ti.tier.AppearanceConditionsMet(phase, dayOfSolarEclipse, dayOfLunarEclipse)
}

func (ti *TierIteration) IsShowing() bool { return ti.showing }

func (ti *TierIteration) Tier() *Tier { return ti.tier }

func (ti *TierIteration) Counter() int { return ti.counter }

// Current созвездие под счётчиком.
func (ti *TierIteration) Current() Constellation {
	return ti.tier.Constellations[ti.counter]
}

// Snapshot возвращает копию состояния.
func (ti *TierIteration) Snapshot() IterationState {
	return IterationState{
		Level:   ti.tier.Level,
		Tier:    ti.tier.Name,
		Showing: ti.showing,
		Active:  ti.Current(),
		Counter: ti.counter,
	}
}
