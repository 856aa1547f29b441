package celestial

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayScheduler_AlwaysTierStaysOn(t *testing.T) {
	reg := MustRegistry(Tier{
		Level:          0,
		Constellations: []Constellation{"a", "b", "c"},
		ShowupChance:   1,
		Condition:      Always(),
	})
	s := NewDayScheduler(reg, 1)

	s.Advance(1)
	ti, ok := s.Iteration(0)
	require.True(t, ok, "автомат создаётся лениво на первом шаге")
	assert.True(t, ti.IsShowing())
	assert.Equal(t, 1, ti.Counter(), "включение выбирает следующее созвездие")
	assert.Equal(t, Constellation("b"), ti.Current())

	// Тир, который виден и всё ещё подходит, не переключается
	s.Advance(10)
	assert.True(t, ti.IsShowing())
	assert.Equal(t, 1, ti.Counter())
	assert.Equal(t, int64(10), s.Day())
}

func TestDayScheduler_ZeroChanceNeverShows(t *testing.T) {
	reg := MustRegistry(Tier{
		Level:          0,
		Constellations: []Constellation{"a"},
		ShowupChance:   0,
		Condition:      Always(),
	})
	s := NewDayScheduler(reg, 99)
	s.Advance(50)

	ti, ok := s.Iteration(0)
	require.True(t, ok)
	assert.False(t, ti.IsShowing())
	assert.Equal(t, 0, ti.Counter())
}

func TestDayScheduler_PhaseConditionRotates(t *testing.T) {
	reg := MustRegistry(Tier{
		Level:          0,
		Constellations: []Constellation{"a", "b", "c"},
		ShowupChance:   1,
		Condition:      OnPhases(Full),
	})
	s := NewDayScheduler(reg, 7)

	s.Advance(1) // сутки 0: FULL
	ti, _ := s.Iteration(0)
	assert.True(t, ti.IsShowing())
	assert.Equal(t, 1, ti.Counter())

	s.Advance(1) // сутки 1: WANING3_4
	assert.False(t, ti.IsShowing(), "условие не выполнено — тир гаснет")
	assert.Equal(t, 1, ti.Counter())

	s.Advance(7) // сутки 8: снова FULL
	assert.True(t, ti.IsShowing())
	assert.Equal(t, 2, ti.Counter())

	s.Advance(8) // сутки 16
	assert.Equal(t, 0, ti.Counter(), "счётчик идёт по кругу")
}

func TestDayScheduler_ConsumesStreamInAscendingOrder(t *testing.T) {
	const seed = 4242
	// Регистрация в обратном порядке: обход всё равно по возрастанию Level
	reg := MustRegistry(
		Tier{Level: 2, Constellations: []Constellation{"z1", "z2"}, ShowupChance: 0.5, Condition: Always()},
		Tier{Level: 1, Constellations: []Constellation{"m1", "m2"}, ShowupChance: 0.5, Condition: OnPhases(New)},
		Tier{Level: 0, Constellations: []Constellation{"a1", "a2"}, ShowupChance: 0.5, Condition: Always()},
	)
	s := NewDayScheduler(reg, seed)

	// Эталонная модель: тот же поток, те же правила
	rng := rand.New(rand.NewSource(seed))
	showing := map[int]bool{}
	counter := map[int]int{}
	for day := int64(0); day < 40; day++ {
		phase := MoonPhaseForDay(day)
		for _, level := range []int{0, 1, 2} {
			if level == 1 && phase != New {
				showing[level] = false
			}
		}
		for _, level := range []int{0, 1, 2} {
			if showing[level] {
				continue
			}
			if level == 1 && phase != New {
				continue // условие не выполнено, поток не расходуется
			}
			if rng.Float64() < 0.5 {
				showing[level] = true
				counter[level] = (counter[level] + 1) % 2
			}
		}

		s.Advance(1)
		for _, level := range []int{0, 1, 2} {
			ti, ok := s.Iteration(level)
			require.True(t, ok)
			assert.Equal(t, showing[level], ti.IsShowing(), "сутки %d, тир %d", day, level)
			assert.Equal(t, counter[level], ti.Counter(), "сутки %d, тир %d", day, level)
		}
	}
}

func TestDayScheduler_StepwiseEqualsCatchUp(t *testing.T) {
	reg := DefaultRegistry()

	for _, seed := range []int64{0, 1, -1, 123456789} {
		for _, days := range []int64{1, 7, 37, 69, 200} {
			stepwise := NewDayScheduler(reg, seed)
			for i := int64(0); i < days; i++ {
				stepwise.Advance(1)
			}
			catchUp := NewDayScheduler(reg, seed)
			catchUp.Advance(days)

			assert.Equal(t, stepwise.Iterations(), catchUp.Iterations(), "seed=%d days=%d", seed, days)
		}
	}
}

func TestDayScheduler_ResetReplaysFromScratch(t *testing.T) {
	reg := DefaultRegistry()

	s := NewDayScheduler(reg, 77)
	s.Advance(120)
	s.Reset(77)
	assert.Empty(t, s.Iterations())
	assert.Equal(t, int64(-1), s.Day())
	s.Advance(30)

	fresh := NewDayScheduler(reg, 77)
	fresh.Advance(30)

	assert.Equal(t, fresh.Iterations(), s.Iterations())
}

func TestDayScheduler_IterationsAscending(t *testing.T) {
	s := NewDayScheduler(DefaultRegistry(), 5)
	s.Advance(3)

	its := s.Iterations()
	require.Len(t, its, 3)
	for i := 1; i < len(its); i++ {
		assert.Less(t, its[i-1].Level, its[i].Level)
	}
}
