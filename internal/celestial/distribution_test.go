package celestial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fourStarRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(Tier{
		Level:          0,
		Name:           "four",
		Constellations: []Constellation{"a", "b", "c", "d"},
		ShowupChance:   1,
		Condition:      Always(),
	})
	require.NoError(t, err)
	return reg
}

func TestComputeDistribution_ActiveShowing(t *testing.T) {
	reg := fourStarRegistry(t)
	d := ComputeDistribution(reg, 0, []IterationState{{Level: 0, Active: "a", Showing: true}})

	assert.InDelta(t, 1.0, d.Charge("a"), 1e-9)
	assert.InDelta(t, 0.65, d.Charge("b"), 1e-9)
	assert.InDelta(t, 0.3, d.Charge("c"), 1e-9, "расстояние 2 при maxDistance 2 даёт минимум")
	// Хвост не обрезается: расстояние 3 > maxDistance
	assert.InDelta(t, -0.05, d.Charge("d"), 1e-9)
}

func TestComputeDistribution_ActiveHidden(t *testing.T) {
	reg := fourStarRegistry(t)
	d := ComputeDistribution(reg, 0, []IterationState{{Level: 0, Active: "c", Showing: false}})

	assert.InDelta(t, 0.65, d.Charge("c"), 1e-9)
	assert.InDelta(t, 0.65, d.Charge("b"), 1e-9)
	assert.InDelta(t, 0.65, d.Charge("d"), 1e-9)
	assert.InDelta(t, 0.3, d.Charge("a"), 1e-9)
}

func TestComputeDistribution_NoIteration(t *testing.T) {
	reg := fourStarRegistry(t)
	d := ComputeDistribution(reg, 0, nil)

	// Активный индекс -1: расстояние до i равно i+1
	assert.InDelta(t, 0.65, d.Charge("a"), 1e-9)
	assert.InDelta(t, 0.3, d.Charge("b"), 1e-9)
	assert.InDelta(t, -0.05, d.Charge("c"), 1e-9)
	assert.InDelta(t, -0.4, d.Charge("d"), 1e-9)
}

func TestComputeDistribution_MaxDistanceUsesIntegerHalf(t *testing.T) {
	reg, err := NewRegistry(Tier{
		Level:          3,
		Name:           "five",
		Constellations: []Constellation{"a", "b", "c", "d", "e"},
		ShowupChance:   1,
		Condition:      Always(),
	})
	require.NoError(t, err)

	d := ComputeDistribution(reg, 0, []IterationState{{Level: 3, Active: "a", Showing: true}})

	// 5/2 = 2, а не 2.5
	assert.InDelta(t, 0.65, d.Charge("b"), 1e-9)
	assert.InDelta(t, 0.3, d.Charge("c"), 1e-9)
}

func TestDistribution_UnknownConstellation(t *testing.T) {
	reg := fourStarRegistry(t)
	d := ComputeDistribution(reg, 4, nil)

	assert.Zero(t, d.Charge("missing"))
	assert.Equal(t, int64(4), d.Day())

	_, ok := d.Tier(42)
	assert.False(t, ok)
}

func TestDistribution_TierReturnsCopy(t *testing.T) {
	reg := fourStarRegistry(t)
	d := ComputeDistribution(reg, 0, []IterationState{{Level: 0, Active: "a", Showing: true}})

	values, ok := d.Tier(0)
	require.True(t, ok)
	values["a"] = 42

	assert.InDelta(t, 1.0, d.Charge("a"), 1e-9, "снимок не должен меняться извне")
	assert.Len(t, d.All()[0], 4)
}
