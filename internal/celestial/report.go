package celestial

// Report сводка состояния неба для API и кеша.
type Report struct {
	Day          int64                             `json:"day"`
	MoonPhase    MoonPhase                         `json:"moon_phase"`
	Solar        EclipseState                      `json:"solar_eclipse"`
	Lunar        EclipseState                      `json:"lunar_eclipse"`
	Iterations   []IterationState                  `json:"iterations"`
	Distribution map[int]map[Constellation]float64 `json:"distribution,omitempty"`
}

// Report собирает сводку из текущего состояния.
func (h *Handler) Report() Report {
	h.mu.RLock()
	r := Report{
		Day:        h.lastTrackedDay,
		MoonPhase:  MoonPhaseForDay(h.lastTrackedDay),
		Solar:      h.eclipses.Solar(),
		Lunar:      h.eclipses.Lunar(),
		Iterations: make([]IterationState, len(h.iterations)),
	}
	copy(r.Iterations, h.iterations)
	h.mu.RUnlock()

	if d := h.distribution.Load(); d != nil {
		r.Distribution = d.All()
	}
	return r
}
