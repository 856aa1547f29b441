package sync

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/celestial/internal/eventbus"
	"github.com/annel0/celestial/internal/logging"
	"github.com/google/uuid"
)

// ChangeCelestialIterations тип изменения с полным набором автоматов тиров.
const ChangeCelestialIterations = "CelestialIterations"

// Change содержит сериализованное изменение состояния (JSON).
type Change struct {
	Data         []byte    `json:"data"`          // Сериализованные данные изменения
	Priority     int       `json:"priority"`      // приоритизация для сброса при перегрузке
	Timestamp    time.Time `json:"timestamp"`     // Время создания изменения
	SourceRegion string    `json:"source_region"` // Регион-источник изменения
	ChangeType   string    `json:"change_type"`   // Тип изменения: "CelestialIterations"
}

// BatchManager накапливает изменения и отправляет их пакетами через EventBus.
// Каждый узел (мир) имеет собственный экземпляр.
type BatchManager struct {
	mu       sync.Mutex
	buf      []Change
	capacity int

	flushEvery time.Duration
	bus        eventbus.EventBus
	source     string // имя текущего узла/region-id
	compressor DeltaCompressor

	quit     chan struct{}
	stopOnce sync.Once
}

// NewBatchManager создаёт менеджер с указанным лимитом буфера и интервалом отправки.
func NewBatchManager(bus eventbus.EventBus, source string, capacity int, flushEvery time.Duration, compressor DeltaCompressor) *BatchManager {
	if compressor == nil {
		compressor = NewPassthroughCompressor()
	}
	if capacity <= 0 {
		capacity = 64
	}
	if flushEvery <= 0 {
		flushEvery = 500 * time.Millisecond
	}
	bm := &BatchManager{
		capacity:   capacity,
		flushEvery: flushEvery,
		bus:        bus,
		source:     source,
		compressor: compressor,
		quit:       make(chan struct{}),
	}
	go bm.loop()
	return bm
}

// AddChange добавляет изменение в буфер.
// Полный набор автоматов от того же источника заменяет ожидающий: в пакет
// уходит только последний. При переполнении вытесняется самое низкоприоритетное
// изменение, при равном приоритете — самое старое.
func (bm *BatchManager) AddChange(ch Change) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.addLocked(ch)
}

func (bm *BatchManager) addLocked(ch Change) {
	if ch.ChangeType == ChangeCelestialIterations {
		for i, c := range bm.buf {
			if c.ChangeType == ChangeCelestialIterations && c.SourceRegion == ch.SourceRegion {
				bm.buf = append(bm.buf[:i], bm.buf[i+1:]...)
				bm.buf = append(bm.buf, ch)
				return
			}
		}
	}

	if len(bm.buf) < bm.capacity {
		bm.buf = append(bm.buf, ch)
		return
	}

	// буфер упорядочен по времени добавления, первый минимум — самый старый
	lowIdx := 0
	for i, c := range bm.buf {
		if c.Priority < bm.buf[lowIdx].Priority {
			lowIdx = i
		}
	}
	if bm.buf[lowIdx].Priority > ch.Priority {
		// все изменения важнее нового — дропаём новый
		return
	}
	bm.buf = append(bm.buf[:lowIdx], bm.buf[lowIdx+1:]...)
	bm.buf = append(bm.buf, ch)
}

func (bm *BatchManager) loop() {
	ticker := time.NewTicker(bm.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			bm.Flush()
		case <-bm.quit:
			return
		}
	}
}

// Pending количество изменений в буфере.
func (bm *BatchManager) Pending() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return len(bm.buf)
}

// Flush отсылает накопленные изменения единым сообщением.
func (bm *BatchManager) Flush() {
	bm.mu.Lock()
	if len(bm.buf) == 0 {
		bm.mu.Unlock()
		return
	}
	// компрессия через DeltaCompressor
	changes := make([]Change, len(bm.buf))
	copy(changes, bm.buf)
	bm.buf = bm.buf[:0]
	bm.mu.Unlock()

	batchPayload, err := bm.compressor.Compress(changes)
	if err != nil {
		logging.Warn("BatchManager compress error: %v", err)
		return
	}

	env := &eventbus.Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    bm.source,
		EventType: eventbus.TypeSyncBatch,
		Version:   1,
		Priority:  5,
		Payload:   batchPayload,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := bm.bus.Publish(ctx, env); err != nil {
		logging.Warn("BatchManager publish error: %v", err)
		bm.requeue(changes)
	}
}

// requeue возвращает неотправленные изменения в буфер. Изменения, пришедшие
// во время отправки, новее и имеют преимущество при слиянии.
func (bm *BatchManager) requeue(changes []Change) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	pending := bm.buf
	bm.buf = make([]Change, 0, len(changes)+len(pending))
	for _, ch := range changes {
		bm.addLocked(ch)
	}
	for _, ch := range pending {
		bm.addLocked(ch)
	}
}

// Stop завершает работу менеджера и отправляет оставшиеся изменения.
func (bm *BatchManager) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.quit)
		bm.Flush()
	})
}
