package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера мира
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Generation GenerationConfig `yaml:"generation"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Events     EventsConfig     `yaml:"events"`
	Admin      AdminConfig      `yaml:"admin"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type WorldConfig struct {
	Name         string `yaml:"name"`
	MinY         int    `yaml:"min_y"`
	MaxY         int    `yaml:"max_y"`
	ViewDistance int    `yaml:"view_distance"` // В колонках чанков
	Backdrop     bool   `yaml:"backdrop"`      // Постоянный фон под загруженными колонками
	LoadWorkers  int    `yaml:"load_workers"`
}

type GenerationConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Seed          int64   `yaml:"seed"`
	NoiseScale    float64 `yaml:"noise_scale"`
	BiomeScale    float64 `yaml:"biome_scale"`
	ForestDensity float64 `yaml:"forest_density"`
	BaseHeight    int     `yaml:"base_height"`
	HeightScale   float64 `yaml:"height_scale"`
	SeaLevel      int     `yaml:"sea_level"`
}

type StorageConfig struct {
	Backend      string      `yaml:"backend"` // memory | badger | redis | maria | mongo | tiered
	Path         string      `yaml:"path"`
	CodecWorkers int         `yaml:"codec_workers"`
	Redis        RedisConfig `yaml:"redis"`
	Maria        MariaConfig `yaml:"maria"`
	Mongo        MongoConfig `yaml:"mongo"`
	Cache        CacheConfig `yaml:"cache"` // Для tiered: Redis поверх холодного уровня
}

type MariaConfig struct {
	DSN   string `yaml:"dsn"` // user:pass@tcp(host:port)/dbname
	Table string `yaml:"table"` // По умолчанию columns_<имя мира>
}

type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

type CacheConfig struct {
	Cold                 string `yaml:"cold"` // badger | maria | mongo
	HotTTLSeconds        int  `yaml:"hot_ttl_seconds"`
	WriteBehind          bool `yaml:"write_behind"`
	WriteBehindMs        int  `yaml:"write_behind_ms"`
	WriteBehindBatchSize int  `yaml:"write_behind_batch_size"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type ServerConfig struct {
	MetricsPort     int `yaml:"metrics_port"`
	TickIntervalMs  int `yaml:"tick_interval_ms"`
	AutosaveSeconds int `yaml:"autosave_seconds"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type EventsConfig struct {
	Backend      string `yaml:"backend"` // "" (выключено) | memory | nats
	NATSURL      string `yaml:"nats_url"`
	Stream       string `yaml:"stream"`
	RetentionMin int    `yaml:"retention_min"`
	BufferSize   int    `yaml:"buffer_size"`
}

type AdminConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Port        int    `yaml:"port"`
	TokenSecret string `yaml:"token_secret"` // base64, >= 32 байт; пусто: изменяющие запросы без токена
	TokenTTLMin int    `yaml:"token_ttl_min"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
	// Components задаёт уровни отдельных компонентов: world, storage, generation, events, http
	Components map[string]string `yaml:"components"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Name:         "overworld",
			MinY:         0,
			MaxY:         256,
			ViewDistance: 4,
			LoadWorkers:  4,
		},
		Generation: GenerationConfig{
			Enabled:       true,
			Seed:          1,
			NoiseScale:    0.05,
			BiomeScale:    0.02,
			ForestDensity: 0.05,
			BaseHeight:    64,
			HeightScale:   48,
			SeaLevel:      62,
		},
		Storage: StorageConfig{
			Backend:      "badger",
			Path:         "data",
			CodecWorkers: 4,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "blockverse:",
			},
			Mongo: MongoConfig{
				URI:      "mongodb://localhost:27017",
				Database: "blockverse",
			},
			Cache: CacheConfig{
				Cold:                 "badger",
				HotTTLSeconds:        300,
				WriteBehindMs:        5000,
				WriteBehindBatchSize: 100,
			},
		},
		Server: ServerConfig{
			TickIntervalMs:  50,
			AutosaveSeconds: 60,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "worldd",
		},
		Events: EventsConfig{
			NATSURL:      "nats://127.0.0.1:4222",
			Stream:       "WORLD",
			RetentionMin: 60,
			BufferSize:   1024,
		},
		Admin: AdminConfig{
			TokenTTLMin: 24 * 60,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "WORLD_METRICS_PORT", 2112)
}

// GetPort возвращает порт административного API с поддержкой fallback значений
func (a *AdminConfig) GetPort() int {
	return getPortWithEnvFallback(a.Port, "WORLD_ADMIN_PORT", 8080)
}

// TokenTTL возвращает срок действия токенов операторов
func (a *AdminConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMin) * time.Minute
}

// TickInterval возвращает период тика
func (s *ServerConfig) TickInterval() time.Duration {
	return time.Duration(s.TickIntervalMs) * time.Millisecond
}

// HotTTL возвращает время жизни горячих копий колонок
func (c *CacheConfig) HotTTL() time.Duration {
	return time.Duration(c.HotTTLSeconds) * time.Second
}

// WriteBehindInterval возвращает период фоновой записи в холодный уровень
func (c *CacheConfig) WriteBehindInterval() time.Duration {
	return time.Duration(c.WriteBehindMs) * time.Millisecond
}

// Retention возвращает срок хранения событий в стриме
func (e *EventsConfig) Retention() time.Duration {
	return time.Duration(e.RetentionMin) * time.Minute
}

// AutosaveInterval возвращает период автосохранения
func (s *ServerConfig) AutosaveInterval() time.Duration {
	return time.Duration(s.AutosaveSeconds) * time.Second
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

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error
	if c.World.MaxY <= c.World.MinY {
		errs = append(errs, fmt.Errorf("world: max_y (%d) must be above min_y (%d)", c.World.MaxY, c.World.MinY))
	}
	if c.World.ViewDistance < 0 {
		errs = append(errs, fmt.Errorf("world: view_distance must not be negative"))
	}
	if c.World.LoadWorkers <= 0 {
		errs = append(errs, fmt.Errorf("world: load_workers must be positive"))
	}
	durable := c.Storage.Backend
	switch c.Storage.Backend {
	case "memory", "badger", "redis", "maria", "mongo":
	case "tiered":
		durable = c.Storage.Cache.Cold
		switch durable {
		case "badger", "maria", "mongo":
		default:
			errs = append(errs, fmt.Errorf("storage: unknown cold tier %q", durable))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown backend %q", c.Storage.Backend))
	}
	if durable == "badger" && c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage: badger needs a path"))
	}
	if durable == "maria" && c.Storage.Maria.DSN == "" {
		errs = append(errs, fmt.Errorf("storage: maria needs a dsn"))
	}
	if durable == "mongo" && c.Storage.Mongo.URI == "" {
		errs = append(errs, fmt.Errorf("storage: mongo needs a uri"))
	}
	switch c.Events.Backend {
	case "", "memory":
	case "nats":
		if c.Events.NATSURL == "" {
			errs = append(errs, fmt.Errorf("events: nats backend needs nats_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("events: unknown backend %q", c.Events.Backend))
	}
	if c.Storage.CodecWorkers <= 0 {
		errs = append(errs, fmt.Errorf("storage: codec_workers must be positive"))
	}
	if c.Admin.Enabled && c.Admin.TokenTTLMin <= 0 {
		errs = append(errs, fmt.Errorf("admin: token_ttl_min must be positive"))
	}
	if c.Server.TickIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("server: tick_interval_ms must be positive"))
	}
	return errors.Join(errs...)
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV WORLD_CONFIG, иначе возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("WORLD_CONFIG")
		if path == "" {
			return cfg, nil // конфиг не задан: использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
