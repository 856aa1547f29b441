package sync

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/annel0/celestial/internal/celestial"
	"github.com/annel0/celestial/internal/logging"
)

// IterationSet полный набор автоматов тиров, разосланный узлом.
// Epoch меняется при каждом перезапуске узла, Seq монотонен внутри эпохи.
type IterationSet struct {
	Source      string                     `json:"source"`
	Epoch       int64                      `json:"epoch"`
	Seq         uint64                     `json:"seq"`
	PublishedAt time.Time                  `json:"published_at"`
	Iterations  []celestial.IterationState `json:"iterations"`
}

// IterationBroadcaster реализует celestial.Publisher поверх BatchManager.
type IterationBroadcaster struct {
	bm     *BatchManager
	source string
	epoch  int64
	seq    uint64
}

// NewIterationBroadcaster создаёт рассыльщик для узла source.
func NewIterationBroadcaster(bm *BatchManager, source string) *IterationBroadcaster {
	return &IterationBroadcaster{bm: bm, source: source, epoch: time.Now().UnixNano()}
}

// PublishIterations кладёт набор в очередь пакетной отправки.
func (ib *IterationBroadcaster) PublishIterations(iterations []celestial.IterationState) {
	set := IterationSet{
		Source:      ib.source,
		Epoch:       ib.epoch,
		Seq:         atomic.AddUint64(&ib.seq, 1),
		PublishedAt: time.Now().UTC(),
		Iterations:  iterations,
	}
	data, err := json.Marshal(set)
	if err != nil {
		logging.Warn("IterationBroadcaster: ошибка сериализации: %v", err)
		return
	}
	ib.bm.AddChange(Change{
		Data:         data,
		Priority:     5,
		Timestamp:    set.PublishedAt,
		SourceRegion: ib.source,
		ChangeType:   ChangeCelestialIterations,
	})
}

var _ celestial.Publisher = (*IterationBroadcaster)(nil)
