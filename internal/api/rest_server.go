package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/celestial/internal/logging"
	"github.com/annel0/celestial/internal/middleware"
	celsync "github.com/annel0/celestial/internal/sync"
	"github.com/annel0/celestial/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer REST API для чтения состояния неба и управления временем мира.
type RestServer struct {
	router   *gin.Engine
	http     *http.Server
	world    *world.WorldManager
	observer *celsync.ObserverState
	webhooks *WebhookManager
	metrics  *ServerMetrics
	version  string
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port     string                 // адрес, например ":8088"
	Version  string                 // версия сервиса для /api/server
	World    *world.WorldManager    // обязательный
	Observer *celsync.ObserverState // nil — /api/celestial/observer отвечает 404
	Webhooks *WebhookManager        // nil — управление webhook'ами отключено

	Registerer prometheus.Registerer // nil — глобальный регистр
	Gatherer   prometheus.Gatherer   // nil — глобальный регистр
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Version == "" {
		config.Version = "dev"
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// === Observability middleware ===
	router.Use(middleware.NewRequestLogger(nil, "/health", "/metrics").Handler())
	router.Use(otelgin.Middleware("celestial_api"))

	promMw := middleware.NewPrometheusMiddleware("celestial_api", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	rs := &RestServer{
		router:   router,
		world:    config.World,
		observer: config.Observer,
		webhooks: config.Webhooks,
		metrics:  NewServerMetrics(),
		version:  config.Version,
	}
	rs.http = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	api.GET("/server", rs.handleServerInfo)

	sky := api.Group("/celestial")
	{
		sky.GET("", rs.handleReport)
		sky.GET("/moon", rs.handleMoon)
		sky.GET("/eclipses", rs.handleEclipses)
		sky.GET("/distribution", rs.handleDistribution)
		sky.GET("/distribution/:constellation", rs.handleConstellation)
		sky.GET("/tiers", rs.handleTiers)
		sky.GET("/observer", rs.handleObserver)
	}

	// Административные эндпоинты (только для админов)
	admin := api.Group("/admin")
	admin.Use(rs.jwtMiddleware(), rs.adminMiddleware())
	{
		admin.GET("/time", rs.handleGetTime)
		admin.POST("/time", rs.handleSetTime)

		if rs.webhooks != nil {
			admin.GET("/webhooks", rs.handleGetWebhooks)
			admin.POST("/webhooks", rs.handleCreateWebhook)
			admin.GET("/webhooks/:id", rs.handleGetWebhook)
			admin.DELETE("/webhooks/:id", rs.handleDeleteWebhook)
		}
	}
}

// Handler http.Handler сервера, удобно для тестов.
func (rs *RestServer) Handler() http.Handler { return rs.router }

// Start блокирует до Stop или ошибки.
func (rs *RestServer) Start() error {
	logging.Info("🌐 REST API запущен на %s", rs.http.Addr)
	if err := rs.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop корректно завершает сервер.
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.http.Shutdown(ctx)
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: message, Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, GenericResponse{Success: false, Message: message})
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
		"world":  rs.world.ID(),
	})
}

func (rs *RestServer) handleServerInfo(c *gin.Context) {
	respondOK(c, "Информация о сервере", rs.metrics.Snapshot(rs.version))
}
