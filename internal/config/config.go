package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервиса.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Celestial CelestialConfig `yaml:"celestial"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Sync      SyncConfig      `yaml:"sync"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type WorldConfig struct {
	ID             string `yaml:"id"`
	Seed           int64  `yaml:"seed"`
	StartTime      int64  `yaml:"start_time"`
	TicksPerSecond int    `yaml:"ticks_per_second"`
	MaxCatchUpDays int64  `yaml:"max_catch_up_days"`
}

type CelestialConfig struct {
	TiersFile string `yaml:"tiers_file"` // пусто — встроенная раскладка
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто — in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type SyncConfig struct {
	RegionID     string `yaml:"region_id"`
	BatchSize    int    `yaml:"batch_size"`
	FlushEvery   int    `yaml:"flush_every_ms"`
	UseGzipCompr bool   `yaml:"use_gzip_compression"`
}

type CacheConfig struct {
	RedisURL      string `yaml:"redis_url"` // пусто — in-memory кеш
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	TTLSeconds    int    `yaml:"ttl_seconds"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // base64, >= 32 байт
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		World: WorldConfig{
			ID:             "overworld",
			Seed:           0,
			TicksPerSecond: 20,
			MaxCatchUpDays: 3650,
		},
		EventBus: EventBusConfig{
			Stream:    "CELESTIAL",
			Retention: 24,
			Buffer:    1024,
		},
		Sync: SyncConfig{
			RegionID:     "local",
			BatchSize:    64,
			FlushEvery:   500,
			UseGzipCompr: true,
		},
		Cache: CacheConfig{
			TTLSeconds: 60,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "celestial",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "CELESTIAL_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "CELESTIAL_METRICS_PORT", 2112)
}

// TickInterval длительность одного тика мира.
func (w *WorldConfig) TickInterval() time.Duration {
	if w.TicksPerSecond <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(w.TicksPerSecond)
}

// FlushInterval период отправки пакетов синхронизации.
func (s *SyncConfig) FlushInterval() time.Duration {
	if s.FlushEvery <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(s.FlushEvery) * time.Millisecond
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV CELESTIAL_CONFIG; без файла возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("CELESTIAL_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Сид мира можно переопределить без правки файла
	if envSeed := os.Getenv("CELESTIAL_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			cfg.World.Seed = seed
		}
	}

	return cfg, nil
}
