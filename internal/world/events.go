package world

import (
	"context"
	"time"

	"github.com/annel0/celestial/internal/celestial"
	"github.com/annel0/celestial/internal/eventbus"
)

// DayEvent полезная нагрузка события CelestialDay.
type DayEvent struct {
	World     string              `json:"world"`
	From      int64               `json:"from"`
	To        int64               `json:"to"`
	Rewind    bool                `json:"rewind"`
	MoonPhase celestial.MoonPhase `json:"moon_phase"`
}

// EclipseEvent полезная нагрузка события CelestialEclipse.
type EclipseEvent struct {
	World     string                `json:"world"`
	Kind      celestial.EclipseKind `json:"kind"`
	Active    bool                  `json:"active"`
	WorldTime int64                 `json:"world_time"`
}

// hooks связывает оркестратор с метриками и шиной событий.
// Вызываются в потоке тика, поэтому прошлые сутки берутся из аргументов.
func (wm *WorldManager) hooks() celestial.Hooks {
	return celestial.Hooks{
		OnDayAdvance: func(from, to int64) {
			if from >= 0 {
				wm.metrics.dayAdvances.Add(float64(to - from))
			}
			wm.publish(eventbus.TypeCelestialDay, 3, DayEvent{
				World:     wm.id,
				From:      from,
				To:        to,
				MoonPhase: celestial.MoonPhaseForDay(to),
			})
		},
		OnRewind: func(day int64) {
			wm.metrics.rewinds.Inc()
			wm.publish(eventbus.TypeCelestialDay, 5, DayEvent{
				World:     wm.id,
				To:        day,
				Rewind:    true,
				MoonPhase: celestial.MoonPhaseForDay(day),
			})
		},
		OnEclipseChange: func(kind celestial.EclipseKind, active bool) {
			wm.reportDirty = true
			v := 0.0
			if active {
				v = 1
				wm.log.Info("🌑 Затмение (%s) началось в мире %s", kind, wm.id)
			} else {
				wm.log.Info("🌕 Затмение (%s) закончилось в мире %s", kind, wm.id)
			}
			wm.metrics.eclipseActive.WithLabelValues(string(kind)).Set(v)
			wm.publish(eventbus.TypeCelestialEclipse, 4, EclipseEvent{
				World:     wm.id,
				Kind:      kind,
				Active:    active,
				WorldTime: wm.Time(),
			})
		},
	}
}

func (wm *WorldManager) publish(eventType string, priority int, payload interface{}) {
	ev, err := eventbus.NewEnvelope("world/"+wm.id, eventType, priority, payload)
	if err != nil {
		wm.log.Warn("🌍 Ошибка сериализации события %s: %v", eventType, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if wm.bus != nil {
		err = wm.bus.Publish(ctx, ev)
	} else {
		err = eventbus.Publish(ctx, ev)
	}
	if err != nil {
		wm.log.Warn("🌍 Не удалось опубликовать %s: %v", eventType, err)
	}
}
