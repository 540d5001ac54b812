package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/annel0/blockverse/internal/api"
	"github.com/annel0/blockverse/internal/area"
	"github.com/annel0/blockverse/internal/auth"
	"github.com/annel0/blockverse/internal/cache"
	"github.com/annel0/blockverse/internal/config"
	"github.com/annel0/blockverse/internal/eventbus"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/observability"
	"github.com/annel0/blockverse/internal/storage"
	"github.com/annel0/blockverse/internal/vec"
	"github.com/annel0/blockverse/internal/world"
	"github.com/annel0/blockverse/internal/world/biome"
	"github.com/annel0/blockverse/internal/world/block"
	"github.com/annel0/blockverse/internal/world/generation"
	"github.com/annel0/blockverse/internal/world/view"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "Путь к YAML конфигурации (по умолчанию $WORLD_CONFIG)")
	viewerX := flag.Int("x", 0, "Координата X наблюдателя")
	viewerZ := flag.Int("z", 0, "Координата Z наблюдателя")
	issueToken := flag.String("issue-token", "", "Выпустить токен оператора с правом записи и выйти")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	if *issueToken != "" {
		if cfg.Admin.TokenSecret == "" {
			log.Fatalf("❌ admin.token_secret не задан, токен не будет принят сервером")
		}
		issuer, err := auth.NewTokenIssuer(cfg.Admin.TokenSecret, cfg.Admin.TokenTTL())
		if err != nil {
			log.Fatalf("❌ Ошибка секрета токенов: %v", err)
		}
		token, err := issuer.Issue(*issueToken, cfg.World.Name, true)
		if err != nil {
			log.Fatalf("❌ Ошибка выпуска токена: %v", err)
		}
		fmt.Println(token)
		return
	}

	// Инициализируем систему логирования
	if err := logging.InitDefaultLogger(cfg.Logging.Dir, logging.ParseLevel(cfg.Logging.Level)); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	logging.GetLoggerManager().Configure(cfg.Logging.Components)
	defer logging.GetLoggerManager().Close()

	logging.Info("🌍 Запуск сервера мира %q (высота [%d, %d), хранилище %s)",
		cfg.World.Name, cfg.World.MinY, cfg.World.MaxY, cfg.Storage.Backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === МЕТРИКИ ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := observability.NewWorldMetrics(reg)

	monitor, err := observability.NewProcessMonitor()
	if err != nil {
		logging.Warn("Мониторинг процесса недоступен: %v", err)
	} else if err := monitor.Register(reg); err != nil {
		logging.Warn("Не удалось зарегистрировать метрики процесса: %v", err)
	}

	metricsAddr := fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())
	metricsServer := observability.StartHTTP(metricsAddr, reg)

	// === СОБЫТИЯ ===
	bus, err := openEventBus(cfg)
	if err != nil {
		logging.Error("❌ Ошибка подключения шины событий: %v", err)
		os.Exit(1)
	}
	if bus != nil {
		defer bus.Close()
		if err := eventbus.RegisterMetrics(reg, bus); err != nil {
			logging.Warn("Не удалось зарегистрировать метрики шины: %v", err)
		}
		if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
			logging.Warn("Не удалось подписать логгер событий: %v", err)
		}
	}

	// === ХРАНИЛИЩЕ ===
	store, err := openStore(ctx, cfg, bus)
	if err != nil {
		logging.Error("❌ Ошибка открытия хранилища: %v", err)
		os.Exit(1)
	}
	store.OnEncoded = metrics.Encoded
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("Ошибка закрытия хранилища: %v", err)
		}
	}()

	// === МИР ===
	opts := world.Options{
		Name:        cfg.World.Name,
		MinY:        cfg.World.MinY,
		MaxY:        cfg.World.MaxY,
		Provider:    store,
		LoadWorkers: cfg.World.LoadWorkers,
		Metrics:     metrics,
	}
	if bus != nil {
		opts.Events = bus
	}
	if cfg.Generation.Enabled {
		opts.Generator = generation.NewTerrainGenerator(generation.TerrainConfig{
			Seed:          cfg.Generation.Seed,
			NoiseScale:    cfg.Generation.NoiseScale,
			BiomeScale:    cfg.Generation.BiomeScale,
			ForestDensity: cfg.Generation.ForestDensity,
			BaseHeight:    cfg.Generation.BaseHeight,
			HeightScale:   cfg.Generation.HeightScale,
			SeaLevel:      cfg.Generation.SeaLevel,
		})
	}
	if cfg.World.Backdrop {
		opts.Backdrop = view.NewConstant(block.AirBlockID, biome.Plains)
	}

	inst, err := world.NewInstance(opts)
	if err != nil {
		logging.Error("❌ Ошибка создания мира: %v", err)
		os.Exit(1)
	}

	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, inst.ID().String())
		if err != nil {
			logging.Warn("Телеметрия отключена: %v", err)
		} else {
			defer func() {
				sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer scancel()
				shutdown(sctx)
			}()
		}
	}

	// === АДМИНИСТРАТИВНЫЙ API ===
	var admin *api.AdminServer
	if cfg.Admin.Enabled {
		admin, err = startAdmin(cfg, inst, reg, monitor)
		if err != nil {
			logging.Error("❌ Ошибка запуска административного API: %v", err)
			os.Exit(1)
		}
	}

	viewer := vec.Vec3{X: *viewerX, Y: cfg.World.MinY, Z: *viewerZ}
	desired := func() area.Area {
		return inst.ViewDistance(viewer, cfg.World.ViewDistance)
	}

	logging.Info("✅ Мир %s запущен, наблюдатель в колонке %v, радиус %d",
		inst.ID(), viewer.Column(), cfg.World.ViewDistance)

	done := make(chan error, 1)
	go func() {
		done <- inst.Run(ctx, cfg.Server.TickInterval(), cfg.Server.AutosaveInterval(), desired)
	}()

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
	case err := <-done:
		logging.Error("Цикл мира остановился: %v", err)
	}

	// === GRACEFUL SHUTDOWN ===
	cancel()
	if err := <-done; err != nil {
		logging.Error("❌ Ошибка сохранения мира: %v", err)
	}

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	if admin != nil {
		if err := admin.Shutdown(sctx); err != nil {
			logging.Error("Ошибка остановки административного API: %v", err)
		}
	}
	if err := metricsServer.Shutdown(sctx); err != nil {
		logging.Error("Ошибка остановки сервера метрик: %v", err)
	}

	if monitor != nil {
		logging.Info("Процесс: %s", monitor.Snapshot())
	}
	logging.Info("👋 Сервер мира остановлен")
}

// startAdmin запускает административный HTTP API в отдельной горутине
func startAdmin(cfg *config.Config, inst *world.Instance, reg *prometheus.Registry, monitor *observability.ProcessMonitor) (*api.AdminServer, error) {
	var issuer *auth.TokenIssuer
	if cfg.Admin.TokenSecret != "" {
		var err error
		issuer, err = auth.NewTokenIssuer(cfg.Admin.TokenSecret, cfg.Admin.TokenTTL())
		if err != nil {
			return nil, err
		}
	} else {
		logging.Warn("⚠️ admin.token_secret не задан, изменяющие запросы принимаются без токена")
	}

	admin, err := api.NewAdminServer(api.Config{
		Addr:     fmt.Sprintf(":%d", cfg.Admin.GetPort()),
		Instance: inst,
		Issuer:   issuer,
		Registry: reg,
		Gatherer: reg,
		Monitor:  monitor,
	})
	if err != nil {
		return nil, err
	}
	go func() {
		if err := admin.Start(); err != nil {
			logging.Error("Административный API остановился: %v", err)
		}
	}()
	return admin, nil
}

// openEventBus открывает шину событий; nil, если события выключены
func openEventBus(cfg *config.Config) (eventbus.EventBus, error) {
	switch cfg.Events.Backend {
	case "memory":
		return eventbus.NewMemoryBus(cfg.Events.BufferSize), nil
	case "nats":
		return eventbus.NewJetStreamBus(cfg.Events.NATSURL, cfg.Events.Stream, cfg.Events.Retention())
	}
	return nil, nil
}

// openStore открывает хранилище колонок, выбранное в конфигурации
func openStore(ctx context.Context, cfg *config.Config, bus eventbus.EventBus) (*storage.ChunkStore, error) {
	workers := cfg.Storage.CodecWorkers
	redisOpts := storage.RedisOptions{
		Addr:      cfg.Storage.Redis.Addr,
		Password:  cfg.Storage.Redis.Password,
		DB:        cfg.Storage.Redis.DB,
		KeyPrefix: cfg.Storage.Redis.KeyPrefix + cfg.World.Name + ":",
	}

	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemoryStore(workers)
	case "redis":
		return storage.OpenRedisStore(ctx, redisOpts, workers)
	case "tiered":
		redisOpts.TTL = cfg.Storage.Cache.HotTTL()
		hot, err := storage.NewRedisBackend(ctx, redisOpts)
		if err != nil {
			return nil, err
		}
		cold, err := openDurable(ctx, cfg, cfg.Storage.Cache.Cold)
		if err != nil {
			hot.Close()
			return nil, err
		}
		var inv cache.Invalidator
		if bus != nil {
			host, _ := os.Hostname()
			inv = cache.NewBusInvalidator(bus, fmt.Sprintf("%s-%d", host, os.Getpid()), 5*time.Second)
		}
		tiered, err := cache.NewTiered(ctx, hot, cold, cache.Config{
			WriteBehindEnabled:   cfg.Storage.Cache.WriteBehind,
			WriteBehindInterval:  cfg.Storage.Cache.WriteBehindInterval(),
			WriteBehindBatchSize: cfg.Storage.Cache.WriteBehindBatchSize,
		}, inv)
		if err != nil {
			hot.Close()
			cold.Close()
			return nil, err
		}
		return storage.NewChunkStore(tiered, workers)
	default:
		backend, err := openDurable(ctx, cfg, cfg.Storage.Backend)
		if err != nil {
			return nil, err
		}
		store, err := storage.NewChunkStore(backend, workers)
		if err != nil {
			backend.Close()
			return nil, err
		}
		return store, nil
	}
}

// openDurable открывает долговременный уровень хранения: badger, maria или mongo
func openDurable(ctx context.Context, cfg *config.Config, kind string) (storage.Backend, error) {
	switch kind {
	case "maria":
		table := cfg.Storage.Maria.Table
		if table == "" {
			table = "columns_" + cfg.World.Name
		}
		return storage.NewMariaBackend(ctx, cfg.Storage.Maria.DSN, table)
	case "mongo":
		opts := storage.DefaultMongoOptions()
		opts.URI = cfg.Storage.Mongo.URI
		if cfg.Storage.Mongo.Database != "" {
			opts.Database = cfg.Storage.Mongo.Database
		}
		// Миры делят базу, коллекция по имени мира
		opts.Collection = cfg.Storage.Mongo.Collection
		if opts.Collection == "" {
			opts.Collection = cfg.World.Name
		}
		return storage.NewMongoBackend(ctx, opts)
	default:
		return storage.NewBadgerBackend(filepath.Join(cfg.Storage.Path, cfg.World.Name))
	}
}
