package sync

import (
	"sort"
	"sync"
)

// ObserverState зеркало состояния неба глазами удалённого наблюдателя:
// последний полученный набор автоматов от каждого источника.
type ObserverState struct {
	mu     sync.RWMutex
	latest map[string]IterationSet
}

func NewObserverState() *ObserverState {
	return &ObserverState{latest: make(map[string]IterationSet)}
}

// Apply применяет набор, если он новее уже известного. Возвращает true при замене.
// Сначала сравнивается эпоха: перезапущенный узел начинает Seq заново.
func (o *ObserverState) Apply(set IterationSet) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cur, ok := o.latest[set.Source]; ok {
		if cur.Epoch > set.Epoch || (cur.Epoch == set.Epoch && cur.Seq >= set.Seq) {
			return false
		}
	}
	o.latest[set.Source] = set
	return true
}

// Latest последний набор от источника.
func (o *ObserverState) Latest(source string) (IterationSet, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	set, ok := o.latest[source]
	return set, ok
}

// Sources известные источники по алфавиту.
func (o *ObserverState) Sources() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.latest))
	for s := range o.latest {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
