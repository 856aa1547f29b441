package api

import (
	"math"
	"net/http"

	"github.com/annel0/celestial/internal/celestial"
	"github.com/gin-gonic/gin"
)

// ReportResponse полная сводка неба с временем мира.
type ReportResponse struct {
	World     string `json:"world"`
	WorldTime int64  `json:"world_time"`
	celestial.Report
}

// TierInfo описание тира для /api/celestial/tiers.
type TierInfo struct {
	Level          int                       `json:"level"`
	Name           string                    `json:"name"`
	Constellations []celestial.Constellation `json:"constellations"`
	ShowupChance   float64                   `json:"showup_chance"`
}

// SetTimeRequest задаёт либо время в тиках, либо номер суток.
type SetTimeRequest struct {
	Time *int64 `json:"time"`
	Day  *int64 `json:"day"`
}

// ready отвечает 503 пока небо не рассчитано первым тиком.
func (rs *RestServer) ready(c *gin.Context) (*celestial.Distribution, bool) {
	d := rs.world.Handler().Distribution()
	if d == nil {
		respondError(c, http.StatusServiceUnavailable, "Небо ещё не рассчитано")
		return nil, false
	}
	return d, true
}

func (rs *RestServer) handleReport(c *gin.Context) {
	if _, ok := rs.ready(c); !ok {
		return
	}
	respondOK(c, "Состояние неба", ReportResponse{
		World:     rs.world.ID(),
		WorldTime: rs.world.Time(),
		Report:    rs.world.Handler().Report(),
	})
}

func (rs *RestServer) handleMoon(c *gin.Context) {
	h := rs.world.Handler()
	if _, ok := rs.ready(c); !ok {
		return
	}
	phase := h.CurrentMoonPhase()
	respondOK(c, "Фаза луны", gin.H{
		"day":   h.CurrentDay(),
		"phase": phase,
		"index": int(phase),
	})
}

func (rs *RestServer) handleEclipses(c *gin.Context) {
	h := rs.world.Handler()
	if _, ok := rs.ready(c); !ok {
		return
	}
	day := h.CurrentDay()
	respondOK(c, "Затмения", gin.H{
		"solar":          h.SolarEclipse(),
		"lunar":          h.LunarEclipse(),
		"next_solar_day": nextEclipseDay(day, celestial.IsSolarEclipseDay),
		"next_lunar_day": nextEclipseDay(day, celestial.IsLunarEclipseDay),
	})
}

// nextEclipseDay ближайшие сутки затмения начиная с day включительно.
func nextEclipseDay(day int64, isEclipseDay func(int64) bool) int64 {
	limit := int64(celestial.LunarEclipsePeriod / celestial.TicksPerDay)
	for d := day; d < day+limit; d++ {
		if isEclipseDay(d) {
			return d
		}
	}
	return -1
}

func (rs *RestServer) handleDistribution(c *gin.Context) {
	d, ok := rs.ready(c)
	if !ok {
		return
	}
	respondOK(c, "Распределение по тирам", gin.H{
		"day":   d.Day(),
		"tiers": d.All(),
	})
}

func (rs *RestServer) handleConstellation(c *gin.Context) {
	name := celestial.Constellation(c.Param("constellation"))
	tier, known := rs.world.Registry().TierOf(name)
	if !known {
		respondError(c, http.StatusNotFound, "Неизвестное созвездие")
		return
	}
	d, ok := rs.ready(c)
	if !ok {
		return
	}
	respondOK(c, "Сила созвездия", gin.H{
		"constellation": name,
		"tier":          tier.Level,
		"day":           d.Day(),
		"charge":        d.Charge(name),
	})
}

func (rs *RestServer) handleTiers(c *gin.Context) {
	tiers := rs.world.Registry().AscendingTiers()
	out := make([]TierInfo, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, TierInfo{
			Level:          t.Level,
			Name:           t.Name,
			Constellations: t.Constellations,
			ShowupChance:   t.ShowupChance,
		})
	}
	respondOK(c, "Тиры созвездий", out)
}

func (rs *RestServer) handleObserver(c *gin.Context) {
	if rs.observer == nil {
		respondError(c, http.StatusNotFound, "Наблюдатель не подключён")
		return
	}
	if source := c.Query("source"); source != "" {
		set, ok := rs.observer.Latest(source)
		if !ok {
			respondError(c, http.StatusNotFound, "Нет данных от источника")
			return
		}
		respondOK(c, "Состояние наблюдателя", set)
		return
	}

	sets := make(map[string]interface{})
	for _, s := range rs.observer.Sources() {
		if set, ok := rs.observer.Latest(s); ok {
			sets[s] = set
		}
	}
	respondOK(c, "Состояние наблюдателя", sets)
}

func (rs *RestServer) handleGetTime(c *gin.Context) {
	respondOK(c, "Время мира", gin.H{
		"world_time": rs.world.Time(),
		"day":        rs.world.Handler().CurrentDay(),
	})
}

func (rs *RestServer) handleSetTime(c *gin.Context) {
	var req SetTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}

	var target int64
	switch {
	case req.Time != nil:
		target = *req.Time
	case req.Day != nil:
		if *req.Day < 0 || *req.Day > math.MaxInt64/celestial.TicksPerDay {
			respondError(c, http.StatusBadRequest, "day вне допустимого диапазона")
			return
		}
		target = *req.Day * celestial.TicksPerDay
	default:
		respondError(c, http.StatusBadRequest, "Нужно указать time или day")
		return
	}

	if err := rs.world.SetTime(target); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, GenericResponse{
		Success: true,
		Message: "Время будет установлено на следующем тике",
		Data:    gin.H{"requested_time": target},
	})
}
