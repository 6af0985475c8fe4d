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

	"github.com/annel0/voxelworld/internal/api"
	"github.com/annel0/voxelworld/internal/app"
	"github.com/annel0/voxelworld/internal/config"
	"github.com/annel0/voxelworld/internal/logging"
	"github.com/annel0/voxelworld/internal/metrics"
	"github.com/annel0/voxelworld/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $VOXEL_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	consoleLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("❌ Неверный уровень логирования: %v", err)
	}
	fileLevel, err := logging.ParseLevel(cfg.Logging.FileLevel)
	if err != nil {
		log.Fatalf("❌ Неверный уровень логирования: %v", err)
	}
	logging.Configure(logging.Options{Dir: cfg.Logging.Dir, ConsoleLevel: consoleLevel, FileLevel: fileLevel})

	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🎮 Запуск сервера воксельного мира (сид %d, чанк %d, радиус %d)",
		cfg.World.Seed, cfg.World.ChunkSize, cfg.Streaming.LoadRadius)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Error("❌ Ошибка инициализации телеметрии: %v", err)
		os.Exit(1)
	}

	// === МЕТРИКИ ===
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	engineMetrics := metrics.New("voxel", registry)

	// === СЕТЬ ===
	network, err := app.OpenNetwork(ctx, cfg.Network)
	if err != nil {
		logging.Error("❌ Ошибка подключения транспорта %q: %v", cfg.Network.Transport, err)
		os.Exit(1)
	}
	defer network.Close()

	// === ДВИЖОК ===
	engine, err := app.New(cfg, app.Options{Bus: network.Bus, Metrics: engineMetrics})
	if err != nil {
		logging.Error("❌ Ошибка создания движка: %v", err)
		os.Exit(1)
	}
	if err := engine.Start(ctx); err != nil {
		logging.Error("❌ Ошибка запуска синхронизации: %v", err)
		os.Exit(1)
	}

	serverCfg := api.Config{
		Addr:     cfg.Server.Bind + ":" + strconv.Itoa(cfg.Server.GetRESTPort()),
		Engine:   engine,
		Registry: registry,
	}
	if network.Hub != nil {
		serverCfg.Hub = network.Hub
	}
	server := api.NewServer(serverCfg)

	go func() {
		if err := server.Start(); err != nil {
			logging.Error("❌ Ошибка HTTP сервера: %v", err)
			stop()
		}
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://%s", serverCfg.Addr)
	logging.Info("   ❤️  Health check: http://%s/health", serverCfg.Addr)
	if network.Hub != nil {
		logging.Info("   🔌 WebSocket синхронизация: ws://%s/ws", serverCfg.Addr)
	}

	if err := engine.Run(ctx); err != nil {
		logging.Error("❌ Цикл движка завершился с ошибкой: %v", err)
	}

	// === GRACEFUL SHUTDOWN ===
	logging.Info("📡 Завершение работы...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки HTTP сервера: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Warn("Ошибка остановки телеметрии: %v", err)
	}
	logging.Info("👋 Сервер успешно остановлен")
}
