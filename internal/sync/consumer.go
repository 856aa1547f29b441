package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/annel0/celestial/internal/eventbus"
	"github.com/annel0/celestial/internal/logging"
)

// SyncConsumer слушает SyncBatch сообщения и применяет наборы автоматов к ObserverState.
type SyncConsumer struct {
	sub        eventbus.Subscription
	compressor DeltaCompressor
	observer   *ObserverState
}

func NewSyncConsumer(bus eventbus.EventBus, compressor DeltaCompressor, observer *ObserverState) (*SyncConsumer, error) {
	if compressor == nil {
		compressor = NewPassthroughCompressor()
	}
	if observer == nil {
		observer = NewObserverState()
	}
	sc := &SyncConsumer{compressor: compressor, observer: observer}
	sub, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{eventbus.TypeSyncBatch}}, sc.handle)
	if err != nil {
		return nil, err
	}
	sc.sub = sub
	return sc, nil
}

func (sc *SyncConsumer) handle(ctx context.Context, ev *eventbus.Envelope) {
	logging.Debug("SyncConsumer: batch size=%d bytes from %s", len(ev.Payload), ev.Source)

	changes, err := sc.compressor.Decompress(ev.Payload)
	if err != nil {
		logging.Warn("SyncConsumer decompress error: %v", err)
		return
	}

	for i := range changes {
		if err := sc.applyChange(&changes[i]); err != nil {
			logging.Warn("SyncConsumer: ошибка применения изменения %d: %v", i, err)
		}
	}
}

// applyChange применяет отдельное изменение
func (sc *SyncConsumer) applyChange(change *Change) error {
	if change == nil {
		return fmt.Errorf("change is nil")
	}
	if len(change.Data) == 0 {
		return fmt.Errorf("change data is empty")
	}
	if change.ChangeType != ChangeCelestialIterations {
		logging.Trace("SyncConsumer: пропуск изменения типа %q", change.ChangeType)
		return nil
	}

	var set IterationSet
	if err := json.Unmarshal(change.Data, &set); err != nil {
		return fmt.Errorf("decode iteration set: %w", err)
	}
	if sc.observer.Apply(set) {
		logging.Debug("SyncConsumer: применён набор #%d от %s (%d тиров)", set.Seq, set.Source, len(set.Iterations))
	}
	return nil
}

// Observer зеркало, которое наполняет потребитель.
func (sc *SyncConsumer) Observer() *ObserverState { return sc.observer }

func (sc *SyncConsumer) Stop() { sc.sub.Unsubscribe() }
