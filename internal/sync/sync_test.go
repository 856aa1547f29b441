package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/annel0/celestial/internal/celestial"
	"github.com/annel0/celestial/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltaCompressor_PreservesChangeMetadata(t *testing.T) {
	changes := []Change{
		{Data: []byte(`{"seq":1}`), Priority: 1, SourceRegion: "eu", ChangeType: ChangeCelestialIterations},
		{Data: []byte("raw"), Priority: 2, ChangeType: "Other"},
	}

	for name, c := range map[string]DeltaCompressor{
		"passthrough": NewPassthroughCompressor(),
		"gzip":        NewSmartCompressor(),
	} {
		t.Run(name, func(t *testing.T) {
			payload, err := c.Compress(changes)
			require.NoError(t, err)

			decoded, err := c.Decompress(payload)
			require.NoError(t, err)
			require.Len(t, decoded, 2)
			assert.Equal(t, "eu", decoded[0].SourceRegion)
			assert.Equal(t, ChangeCelestialIterations, decoded[0].ChangeType)
			assert.Equal(t, []byte("raw"), decoded[1].Data)
		})
	}
}

func TestPassthroughCompressor_TruncatedTail(t *testing.T) {
	c := NewPassthroughCompressor()
	payload, err := c.Compress([]Change{{Data: []byte("a")}})
	require.NoError(t, err)

	decoded, err := c.Decompress(append(payload, 0, 0))
	require.NoError(t, err)
	assert.Len(t, decoded, 1, "обрезанный хвост игнорируется")
}

func TestBatchManager_DropsLowPriorityWhenFull(t *testing.T) {
	bus := eventbus.NewMemoryBus(4)
	bm := NewBatchManager(bus, "test", 2, time.Hour, nil)
	defer bm.Stop()

	bm.AddChange(Change{Data: []byte("low"), Priority: 1})
	bm.AddChange(Change{Data: []byte("mid"), Priority: 3})
	bm.AddChange(Change{Data: []byte("high"), Priority: 5})
	bm.AddChange(Change{Data: []byte("lowest"), Priority: 0})

	assert.Equal(t, 2, bm.Pending())
	bm.Flush()
	assert.Equal(t, 0, bm.Pending())
}

func TestBatchManager_EvictsOldestOnPriorityTie(t *testing.T) {
	bm := NewBatchManager(eventbus.NewMemoryBus(4), "test", 2, time.Hour, nil)
	defer bm.Stop()

	bm.AddChange(Change{Data: []byte("a"), Priority: 5})
	bm.AddChange(Change{Data: []byte("b"), Priority: 5})
	bm.AddChange(Change{Data: []byte("c"), Priority: 5})

	bm.mu.Lock()
	defer bm.mu.Unlock()
	require.Len(t, bm.buf, 2)
	assert.Equal(t, []byte("b"), bm.buf[0].Data)
	assert.Equal(t, []byte("c"), bm.buf[1].Data)
}

func TestBatchManager_DeliversLatestIterations(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	consumer, err := NewSyncConsumer(bus, nil, nil)
	require.NoError(t, err)
	defer consumer.Stop()

	bm := NewBatchManager(bus, "eu", 2, time.Hour, nil)
	defer bm.Stop()

	h := celestial.NewHandler(celestial.DefaultRegistry(), NewIterationBroadcaster(bm, "eu"))
	for d := int64(0); d < 5; d++ {
		h.OnTick(d*celestial.TicksPerDay, 77)
	}
	assert.Equal(t, 1, bm.Pending(), "наборы одного источника сливаются")

	bm.Flush()
	require.Eventually(t, func() bool {
		set, ok := consumer.Observer().Latest("eu")
		return ok && set.Seq == 5
	}, time.Second, 10*time.Millisecond)

	set, _ := consumer.Observer().Latest("eu")
	assert.Equal(t, h.Iterations(), set.Iterations)
}

type failingBus struct {
	eventbus.EventBus
	fail atomic.Bool
}

func (b *failingBus) Publish(ctx context.Context, ev *eventbus.Envelope) error {
	if b.fail.Load() {
		return errors.New("bus unavailable")
	}
	return b.EventBus.Publish(ctx, ev)
}

func TestBatchManager_RequeuesOnPublishError(t *testing.T) {
	bus := &failingBus{EventBus: eventbus.NewMemoryBus(4)}
	bus.fail.Store(true)
	bm := NewBatchManager(bus, "test", 4, time.Hour, nil)
	defer bm.Stop()

	bm.AddChange(Change{Data: []byte("a"), Priority: 1})
	bm.AddChange(Change{Data: []byte("b"), Priority: 1})
	bm.Flush()
	assert.Equal(t, 2, bm.Pending(), "изменения возвращены в буфер")

	bus.fail.Store(false)
	bm.Flush()
	assert.Equal(t, 0, bm.Pending())
}

func TestObserverState_KeepsNewest(t *testing.T) {
	o := NewObserverState()

	assert.True(t, o.Apply(IterationSet{Source: "a", Seq: 2}))
	assert.False(t, o.Apply(IterationSet{Source: "a", Seq: 1}), "устаревший набор не применяется")
	assert.True(t, o.Apply(IterationSet{Source: "b", Seq: 1}))

	set, ok := o.Latest("a")
	require.True(t, ok)
	assert.Equal(t, uint64(2), set.Seq)
	assert.Equal(t, []string{"a", "b"}, o.Sources())
}

func TestObserverState_NewEpochReplaces(t *testing.T) {
	o := NewObserverState()

	require.True(t, o.Apply(IterationSet{Source: "a", Epoch: 100, Seq: 40}))
	assert.True(t, o.Apply(IterationSet{Source: "a", Epoch: 200, Seq: 1}), "перезапущенный узел начинает Seq заново")
	assert.False(t, o.Apply(IterationSet{Source: "a", Epoch: 100, Seq: 41}), "набор прошлого запуска отклоняется")

	set, _ := o.Latest("a")
	assert.EqualValues(t, 200, set.Epoch)
	assert.EqualValues(t, 1, set.Seq)
}

func TestSyncManager_EndToEnd(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	sm, err := NewSyncManager(SyncConfig{
		RegionID:     "overworld",
		Bus:          bus,
		BatchSize:    8,
		FlushEvery:   20 * time.Millisecond,
		UseGzipCompr: true,
	})
	require.NoError(t, err)
	defer sm.Stop()

	h := celestial.NewHandler(celestial.DefaultRegistry(), sm.Publisher())
	h.OnTick(0, 77)
	h.OnTick(3*celestial.TicksPerDay, 77)

	require.Eventually(t, func() bool {
		set, ok := sm.Observer().Latest("overworld")
		return ok && set.Seq == 2
	}, 2*time.Second, 10*time.Millisecond)

	set, _ := sm.Observer().Latest("overworld")
	assert.Equal(t, h.Iterations(), set.Iterations)
}
