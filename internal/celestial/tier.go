package celestial

import "errors"

// Ошибки реестра тиров
var (
	ErrEmptyTier              = errors.New("tier has no constellations")
	ErrInvalidChance          = errors.New("showup chance must be within [0,1]")
	ErrDuplicateTier          = errors.New("duplicate tier level")
	ErrDuplicateConstellation = errors.New("constellation registered twice")
	ErrNilCondition           = errors.New("tier has no appearance condition")
	ErrUnknownMoonPhase       = errors.New("unknown moon phase")
	ErrUnknownCondition       = errors.New("unknown condition type")
)

// Constellation идентификатор созвездия. Сравнивается по значению.
type Constellation string

// Condition условие появления тира на небе.
type Condition interface {
	Met(phase MoonPhase, dayOfSolarEclipse, dayOfLunarEclipse bool) bool
}

// ConditionFunc адаптер функции к Condition.
type ConditionFunc func(phase MoonPhase, dayOfSolarEclipse, dayOfLunarEclipse bool) bool

func (f ConditionFunc) Met(phase MoonPhase, solar, lunar bool) bool { return f(phase, solar, lunar) }

type alwaysCondition struct{}

func (alwaysCondition) Met(MoonPhase, bool, bool) bool { return true }

// Always условие, выполняющееся каждые сутки.
func Always() Condition { return alwaysCondition{} }

type phaseCondition struct {
	phases [MoonPhaseCount]bool
}

func (c phaseCondition) Met(phase MoonPhase, _, _ bool) bool {
	if phase < 0 || int(phase) >= MoonPhaseCount {
		return false
	}
	return c.phases[phase]
}

// OnPhases выполняется только в перечисленные фазы луны.
func OnPhases(phases ...MoonPhase) Condition {
	var c phaseCondition
	for _, p := range phases {
		if p >= 0 && int(p) < MoonPhaseCount {
			c.phases[p] = true
		}
	}
	return c
}

// OnSolarEclipseDay выполняется в сутки солнечного затмения.
func OnSolarEclipseDay() Condition {
	return ConditionFunc(func(_ MoonPhase, solar, _ bool) bool { return solar })
}

// OnLunarEclipseDay выполняется в сутки лунного затмения.
func OnLunarEclipseDay() Condition {
	return ConditionFunc(func(_ MoonPhase, _, lunar bool) bool { return lunar })
}

// AnyOf выполняется, если выполнено хотя бы одно из условий.
func AnyOf(conds ...Condition) Condition {
	return ConditionFunc(func(phase MoonPhase, solar, lunar bool) bool {
		for _, c := range conds {
			if c.Met(phase, solar, lunar) {
				return true
			}
		}
		return false
	})
}

// AllOf выполняется, если выполнены все условия. Пустой список выполняется всегда.
func AllOf(conds ...Condition) Condition {
	return ConditionFunc(func(phase MoonPhase, solar, lunar bool) bool {
		for _, c := range conds {
			if !c.Met(phase, solar, lunar) {
				return false
			}
		}
		return true
	})
}

// Tier ранжированная группа созвездий с общими правилами появления.
// После регистрации в Registry не изменяется.
type Tier struct {
	Level          int             // Порядок тира; меньше = раньше
	Name           string          // Человекочитаемое имя
	Constellations []Constellation // Упорядоченный список созвездий
	ShowupChance   float64         // Вероятность появления в подходящие сутки
	Condition      Condition       // Условие появления
}

// AppearanceConditionsMet проверяет условие появления тира.
func (t *Tier) AppearanceConditionsMet(phase MoonPhase, dayOfSolarEclipse, dayOfLunarEclipse bool) bool {
	return t.Condition.Met(phase, dayOfSolarEclipse, dayOfLunarEclipse)
}

// IndexOf возвращает индекс созвездия в тире или -1.
func (t *Tier) IndexOf(c Constellation) int {
	for i, tc := range t.Constellations {
		if tc == c {
			return i
		}
	}
	return -1
}
