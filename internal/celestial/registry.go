package celestial

import (
	"fmt"
	"sort"
)

// Registry неизменяемый упорядоченный набор тиров.
// Конструктор отклоняет тиры без созвездий: иначе планировщик и калькулятор
// распределения делили бы на ноль.
type Registry struct {
	tiers   []*Tier
	byLevel map[int]*Tier
	owner   map[Constellation]*Tier
}

// NewRegistry проверяет тиры и возвращает реестр, отсортированный по Level.
func NewRegistry(tiers ...Tier) (*Registry, error) {
	reg := &Registry{
		tiers:   make([]*Tier, 0, len(tiers)),
		byLevel: make(map[int]*Tier, len(tiers)),
		owner:   make(map[Constellation]*Tier),
	}

	for i := range tiers {
		src := tiers[i]
		if len(src.Constellations) == 0 {
			return nil, fmt.Errorf("tier %d (%s): %w", src.Level, src.Name, ErrEmptyTier)
		}
		if src.ShowupChance < 0 || src.ShowupChance > 1 {
			return nil, fmt.Errorf("tier %d (%s): %w: %v", src.Level, src.Name, ErrInvalidChance, src.ShowupChance)
		}
		if src.Condition == nil {
			return nil, fmt.Errorf("tier %d (%s): %w", src.Level, src.Name, ErrNilCondition)
		}
		if _, exists := reg.byLevel[src.Level]; exists {
			return nil, fmt.Errorf("tier %d (%s): %w", src.Level, src.Name, ErrDuplicateTier)
		}

		t := &Tier{
			Level:          src.Level,
			Name:           src.Name,
			Constellations: append([]Constellation(nil), src.Constellations...),
			ShowupChance:   src.ShowupChance,
			Condition:      src.Condition,
		}
		for _, c := range t.Constellations {
			if prev, exists := reg.owner[c]; exists {
				return nil, fmt.Errorf("constellation %q in tiers %d and %d: %w", c, prev.Level, t.Level, ErrDuplicateConstellation)
			}
			reg.owner[c] = t
		}
		reg.byLevel[t.Level] = t
		reg.tiers = append(reg.tiers, t)
	}

	sort.Slice(reg.tiers, func(i, j int) bool { return reg.tiers[i].Level < reg.tiers[j].Level })
	return reg, nil
}

// MustRegistry как NewRegistry, но паникует при ошибке. Для статических таблиц.
func MustRegistry(tiers ...Tier) *Registry {
	reg, err := NewRegistry(tiers...)
	if err != nil {
		panic(err)
	}
	return reg
}

// AscendingTiers возвращает тиры по возрастанию Level.
// Срез новый, сами тиры общие и не должны изменяться.
func (r *Registry) AscendingTiers() []*Tier {
	out := make([]*Tier, len(r.tiers))
	copy(out, r.tiers)
	return out
}

// Tier возвращает тир по уровню.
func (r *Registry) Tier(level int) (*Tier, bool) {
	t, ok := r.byLevel[level]
	return t, ok
}

// TierOf возвращает тир, которому принадлежит созвездие.
func (r *Registry) TierOf(c Constellation) (*Tier, bool) {
	t, ok := r.owner[c]
	return t, ok
}

// Len количество тиров.
func (r *Registry) Len() int { return len(r.tiers) }

// DefaultRegistry встроенная раскладка созвездий.
func DefaultRegistry() *Registry {
	return MustRegistry(
		Tier{
			Level:          0,
			Name:           "bright",
			Constellations: []Constellation{"discidia", "armara", "vicio", "aevitas", "evorsio"},
			ShowupChance:   1.0,
			Condition:      Always(),
		},
		Tier{
			Level:          1,
			Name:           "dim",
			Constellations: []Constellation{"lucerna", "mineralis", "horologium", "octans", "bootes", "fornax", "pelotrio"},
			ShowupChance:   0.6,
			Condition:      OnPhases(Full, Waning3_4, Waning1_2, Waxing1_2, Waxing3_4),
		},
		Tier{
			Level:          2,
			Name:           "faint",
			Constellations: []Constellation{"gelu", "ulteria", "alcara", "vorux"},
			ShowupChance:   0.3,
			Condition:      AnyOf(OnPhases(New, Waning1_4, Waxing1_4), OnSolarEclipseDay(), OnLunarEclipseDay()),
		},
	)
}
