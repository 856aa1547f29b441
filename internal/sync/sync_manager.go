package sync

import (
	"time"

	"github.com/annel0/celestial/internal/eventbus"
	"github.com/annel0/celestial/internal/logging"
)

// SyncManager координирует работу всех компонентов синхронизации:
// BatchManager, IterationBroadcaster, SyncConsumer.
type SyncManager struct {
	bm          *BatchManager
	broadcaster *IterationBroadcaster
	consumer    *SyncConsumer
	log         *logging.Logger
}

type SyncConfig struct {
	RegionID     string
	Bus          eventbus.EventBus
	BatchSize    int
	FlushEvery   time.Duration
	UseGzipCompr bool
}

func NewSyncManager(cfg SyncConfig) (*SyncManager, error) {
	log := logging.GetSyncLogger()

	var compressor DeltaCompressor
	if cfg.UseGzipCompr {
		compressor = NewSmartCompressor()
		log.Info("🔄 SyncManager: используется gzip-компрессия")
	} else {
		compressor = NewPassthroughCompressor()
		log.Info("🔄 SyncManager: компрессия отключена")
	}

	bm := NewBatchManager(cfg.Bus, cfg.RegionID, cfg.BatchSize, cfg.FlushEvery, compressor)
	consumer, err := NewSyncConsumer(cfg.Bus, compressor, NewObserverState())
	if err != nil {
		bm.Stop()
		return nil, err
	}

	log.Info("✅ SyncManager инициализирован: region=%s, batch=%d, flush=%v",
		cfg.RegionID, cfg.BatchSize, cfg.FlushEvery)

	return &SyncManager{
		bm:          bm,
		broadcaster: NewIterationBroadcaster(bm, cfg.RegionID),
		consumer:    consumer,
		log:         log,
	}, nil
}

// Publisher рассыльщик для celestial.Handler.
func (sm *SyncManager) Publisher() *IterationBroadcaster { return sm.broadcaster }

// Observer зеркало удалённого наблюдателя.
func (sm *SyncManager) Observer() *ObserverState { return sm.consumer.Observer() }

func (sm *SyncManager) Stop() {
	sm.bm.Stop()
	sm.consumer.Stop()
	sm.log.Info("🔄 SyncManager остановлен")
}
