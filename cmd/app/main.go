package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/asquebay/blueflow/internal/config"
	"github.com/asquebay/blueflow/internal/lib/logger"
	"github.com/asquebay/blueflow/internal/repository/postgres"
	"github.com/asquebay/blueflow/internal/service"
	httptransport "github.com/asquebay/blueflow/internal/transport/http"
	"github.com/asquebay/blueflow/internal/transport/kafka"
)

func main() {
	app := &cli.App{
		Name:  "blueflow",
		Usage: "campus kitchen queue with dynamic order throttling",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run HTTP server, live monitor and kafka intake",
				Flags:  []cli.Flag{configFlag()},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply postgres migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: migrate,
			},
			{
				Name:  "simulate",
				Usage: "append a burst of fake orders to the configured store",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "level", Value: string(service.TrafficWarning), Usage: "warning or critical"},
				},
				Action: simulate,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configFlag у каждой команды свой, чтобы работало "app serve --config path"
func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to config.yaml",
		Value:   "config/config.yaml",
		EnvVars: []string{"CONFIG_PATH"},
	}
}

func serve(c *cli.Context) error {
	// 1. Инициализация конфигурации
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	// 2. Инициализация логгера
	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	log.Info("starting blueflow",
		slog.String("log_level", cfg.Logger.Level),
		slog.String("storage", cfg.Storage.Backend),
		slog.String("events", cfg.Events.Backend),
	)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Инициализация хранилища
	store, closeStore, err := newStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to init order store", slog.String("error", err.Error()))
		return err
	}
	defer closeStore()

	// 4. Инициализация публикации событий
	events, closeEvents, err := newPublisher(cfg, log)
	if err != nil {
		// не фатальная ошибка, заказы принимаются и без событий
		log.Error("failed to init event publisher, events disabled", slog.String("error", err.Error()))
		events, closeEvents = service.NopPublisher{}, func() {}
	}
	defer closeEvents()

	// 5. Инициализация сервисного слоя
	orderSvc := service.NewOrderService(store, events, rules(cfg), cfg.Kitchen.Mode(), log)

	// 6. Монитор метрик вместо перезапуска страницы по таймеру
	monitor := service.NewMonitor(orderSvc, cfg.Refresh.Interval, log)
	go monitor.Run(ctx)

	// 7. Kafka-консьюмер заказов от киосков
	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, orderSvc, log)
		go consumer.Run(ctx)
	}

	// 8. Инициализация и запуск HTTP-сервера
	handler := httptransport.NewHandler(orderSvc, monitor, log)
	httpServer := httptransport.NewServer(cfg.HTTPServer.Port, httptransport.WithRequestLog(handler, log), cfg.HTTPServer.Timeout)
	httpServer.RegisterOnShutdown(handler.CloseStreams)
	log.Info("starting http server", slog.String("port", cfg.HTTPServer.Port))

	serverErr := make(chan error, 1)
	go func() {
		if err := httpServer.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 9. Graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error("http server failed", slog.String("error", err.Error()))
		stop()
	}

	log.Info("shutting down application")

	// создаем контекст с таймаутом для шатдауна сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", slog.String("error", err.Error()))
	}

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Error("error closing kafka consumer", slog.String("error", err.Error()))
		}
	}

	log.Info("application stopped")
	return nil
}

func migrate(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)

	if cfg.Storage.Backend != "postgres" {
		log.Warn("storage backend is not postgres, migrating anyway", slog.String("storage", cfg.Storage.Backend))
	}
	return postgres.Migrate(cfg.Postgres, log)
}

func simulate(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)

	store, closeStore, err := newStore(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	events, closeEvents, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer closeEvents()

	orderSvc := service.NewOrderService(store, events, rules(cfg), cfg.Kitchen.Mode(), log)
	n, err := orderSvc.SimulateTraffic(c.Context, service.TrafficLevel(c.String("level")))
	if err != nil {
		return err
	}

	m, err := orderSvc.Metrics(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("added %d orders: %d items in queue, wait %d mins, status %s\n",
		n, m.PendingItemTotal, m.WaitDisplay(), m.StatusLevel)
	return nil
}
