package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/annel0/celestial/internal/api"
	"github.com/annel0/celestial/internal/auth"
	"github.com/annel0/celestial/internal/cache"
	"github.com/annel0/celestial/internal/celestial"
	"github.com/annel0/celestial/internal/config"
	"github.com/annel0/celestial/internal/eventbus"
	"github.com/annel0/celestial/internal/logging"
	"github.com/annel0/celestial/internal/observability"
	celsync "github.com/annel0/celestial/internal/sync"
	"github.com/annel0/celestial/internal/world"
)

const version = "v0.1.0"

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или CELESTIAL_CONFIG)")
	flag.Parse()

	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer func() { _ = logging.GetLoggerManager().CloseAll() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		logging.SetLevel(level)
		for _, l := range []*logging.Logger{logging.GetWorldLogger(), logging.GetSyncLogger(), logging.GetAPILogger()} {
			l.SetConsoleLevel(level)
		}
	} else {
		logging.Warn("Неизвестный уровень логирования %q, используется INFO", cfg.Logging.Level)
	}

	logging.Info("🌌 Запуск Celestial Server %s (мир %s, seed=%d)", version, cfg.World.ID, cfg.World.Seed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName)
		if err != nil {
			logging.Warn("⚠️  OpenTelemetry недоступен: %v", err)
		} else {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	if cfg.Auth.JWTSecret != "" {
		if err := auth.SetJWTSecret(cfg.Auth.JWTSecret); err != nil {
			log.Fatalf("❌ Некорректный JWT секрет: %v", err)
		}
	} else {
		logging.Warn("⚠️  JWT секрет не задан, токены действительны до перезапуска")
	}

	// === РЕЕСТР ТИРОВ ===
	registry := celestial.DefaultRegistry()
	if cfg.Celestial.TiersFile != "" {
		registry, err = celestial.LoadRegistry(cfg.Celestial.TiersFile)
		if err != nil {
			log.Fatalf("❌ Ошибка загрузки тиров %s: %v", cfg.Celestial.TiersFile, err)
		}
	}
	logging.Info("✨ Загружено тиров созвездий: %d", registry.Len())

	// === ШИНА СОБЫТИЙ ===
	var bus eventbus.EventBus
	if cfg.EventBus.URL != "" {
		js, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream,
			time.Duration(cfg.EventBus.Retention)*time.Hour)
		if err != nil {
			log.Fatalf("❌ Ошибка подключения к NATS: %v", err)
		}
		defer js.Close()
		bus = js
		logging.Info("📨 Шина событий: JetStream %s (stream=%s)", cfg.EventBus.URL, cfg.EventBus.Stream)
	} else {
		bus = eventbus.NewMemoryBus(cfg.EventBus.Buffer)
		logging.Info("📨 Шина событий: in-memory")
	}
	eventbus.Init(bus)
	if err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("⚠️  Не удалось запустить логирующий слушатель: %v", err)
	}

	exporter := eventbus.NewMetricsExporter(bus, nil)
	exporter.StartHTTP(portAddr(cfg.Server.GetMetricsPort()))
	defer exporter.Stop()

	// === СИНХРОНИЗАЦИЯ ===
	syncMgr, err := celsync.NewSyncManager(celsync.SyncConfig{
		RegionID:     cfg.Sync.RegionID,
		Bus:          bus,
		BatchSize:    cfg.Sync.BatchSize,
		FlushEvery:   cfg.Sync.FlushInterval(),
		UseGzipCompr: cfg.Sync.UseGzipCompr,
	})
	if err != nil {
		log.Fatalf("❌ Ошибка создания SyncManager: %v", err)
	}
	defer syncMgr.Stop()

	worldOpts := world.Options{
		ID:             cfg.World.ID,
		Seed:           cfg.World.Seed,
		StartTime:      cfg.World.StartTime,
		TickInterval:   cfg.World.TickInterval(),
		MaxCatchUpDays: cfg.World.MaxCatchUpDays,
	}

	// === КЕШ СВОДОК ===
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	var store *cache.RepoSnapshotStore
	if cfg.Cache.RedisURL != "" {
		store, err = cache.NewRedisSnapshotStore(&cache.CacheConfig{
			RedisURL:      cfg.Cache.RedisURL,
			RedisPassword: cfg.Cache.RedisPassword,
			RedisDB:       cfg.Cache.RedisDB,
		}, ttl)
		if err != nil {
			logging.Warn("⚠️  Redis недоступен (%v), сводки хранятся в памяти", err)
		}
	}
	if store == nil {
		store = cache.NewMemorySnapshotStore(ttl)
	}
	defer store.Close()

	// === МИР ===
	worldOpts.Store = store
	worldOpts.Bus = bus
	wm := world.NewWorldManager(worldOpts, registry, syncMgr.Publisher())

	// === REST API ===
	hooks, err := api.NewWebhookManager(ctx, bus, cfg.World.ID)
	if err != nil {
		log.Fatalf("❌ Ошибка создания менеджера webhook'ов: %v", err)
	}
	defer hooks.Close()

	restServer := api.NewRestServer(api.Config{
		Port:     portAddr(cfg.Server.GetRESTPort()),
		Version:  version,
		World:    wm,
		Observer: syncMgr.Observer(),
		Webhooks: hooks,
	})
	go func() {
		if err := restServer.Start(); err != nil {
			logging.Error("❌ REST API остановлен с ошибкой: %v", err)
			cancel()
		}
	}()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		_ = wm.Run(ctx)
	}()

	logging.Info("✅ Сервер запущен: REST=%d, metrics=%d", cfg.Server.GetRESTPort(), cfg.Server.GetMetricsPort())

	// === ОЖИДАНИЕ СИГНАЛА ===
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logging.Info("🛑 Получен сигнал %v, останавливаемся...", sig)
	case <-ctx.Done():
	}

	cancel()
	<-worldDone

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := restServer.Stop(shutdownCtx); err != nil {
		logging.Warn("⚠️  Ошибка остановки REST API: %v", err)
	}
	logging.Info("👋 Сервер остановлен на времени мира %d", wm.Time())
}

func portAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
