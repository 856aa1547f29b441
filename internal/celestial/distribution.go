package celestial

import "math"

const (
	// MinDistributionRate нижняя граница силы для созвездия на максимальном расстоянии.
	MinDistributionRate = 0.3
	// DistributionMultiplier диапазон от MinDistributionRate до 1.
	DistributionMultiplier = 1 - MinDistributionRate
)

// Distribution неизменяемый снимок силы созвездий по тирам.
// Заменяется целиком; опубликованный снимок никогда не меняется.
type Distribution struct {
	day    int64
	tiers  map[int]map[Constellation]float64
	charge map[Constellation]float64
}

// ComputeDistribution считает силу каждого созвездия по расстоянию до активного.
// Тир без снимка считается с активным индексом -1.
func ComputeDistribution(reg *Registry, day int64, iterations []IterationState) *Distribution {
	byLevel := make(map[int]IterationState, len(iterations))
	for _, it := range iterations {
		byLevel[it.Level] = it
	}

	d := &Distribution{
		day:    day,
		tiers:  make(map[int]map[Constellation]float64, reg.Len()),
		charge: make(map[Constellation]float64),
	}
	for _, t := range reg.AscendingTiers() {
		activeIndex := -1
		activeShowing := false
		if it, ok := byLevel[t.Level]; ok {
			activeIndex = t.IndexOf(it.Active)
			activeShowing = it.Showing
		}

		values := tierDistribution(len(t.Constellations), activeIndex, activeShowing)
		tierCharges := make(map[Constellation]float64, len(values))
		for i, c := range t.Constellations {
			tierCharges[c] = values[i]
			d.charge[c] = values[i]
		}
		d.tiers[t.Level] = tierCharges
	}
	return d
}

// tierDistribution значения для n созвездий при активном индексе activeIndex.
// maxDistance = n/2 с целочисленным делением; хвост дальше maxDistance не обрезается.
func tierDistribution(n, activeIndex int, activeShowing bool) []float64 {
	values := make([]float64, n)
	maxDistance := float64(n / 2)
	for i := 0; i < n; i++ {
		if i == activeIndex {
			if activeShowing {
				values[i] = 1
			} else {
				values[i] = MinDistributionRate + DistributionMultiplier/2
			}
			continue
		}
		distance := math.Abs(float64(activeIndex - i))
		perc := 1 - distance/maxDistance
		values[i] = MinDistributionRate + perc*DistributionMultiplier
	}
	return values
}

// Day сутки, для которых посчитан снимок.
func (d *Distribution) Day() int64 { return d.day }

// Charge сила созвездия; 0 для неизвестного созвездия.
func (d *Distribution) Charge(c Constellation) float64 {
	return d.charge[c]
}

// Tier копия значений одного тира.
func (d *Distribution) Tier(level int) (map[Constellation]float64, bool) {
	src, ok := d.tiers[level]
	if !ok {
		return nil, false
	}
	out := make(map[Constellation]float64, len(src))
	for c, v := range src {
		out[c] = v
	}
	return out, true
}

// All копия всех значений по уровням тиров.
func (d *Distribution) All() map[int]map[Constellation]float64 {
	out := make(map[int]map[Constellation]float64, len(d.tiers))
	for level := range d.tiers {
		out[level], _ = d.Tier(level)
	}
	return out
}
