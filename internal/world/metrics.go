package world

import "github.com/prometheus/client_golang/prometheus"

type clockMetrics struct {
	worldTime     prometheus.Gauge
	day           prometheus.Gauge
	dayAdvances   prometheus.Counter
	rewinds       prometheus.Counter
	eclipseActive *prometheus.GaugeVec
}

func newClockMetrics(reg prometheus.Registerer) *clockMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &clockMetrics{
		worldTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "celestial",
			Name:      "world_time",
			Help:      "Текущее время мира в тиках.",
		}),
		day: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "celestial",
			Name:      "day",
			Help:      "Последние отслеженные игровые сутки.",
		}),
		dayAdvances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "celestial",
			Name:      "day_advances_total",
			Help:      "Смоделированные сутки при движении времени вперёд.",
		}),
		rewinds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "celestial",
			Name:      "rewinds_total",
			Help:      "Пересчёты расписания после перехода времени назад.",
		}),
		eclipseActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "celestial",
			Name:      "eclipse_active",
			Help:      "1 пока идёт активная фаза затмения.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.worldTime, m.day, m.dayAdvances, m.rewinds, m.eclipseActive)
	return m
}
