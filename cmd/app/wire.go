package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/asquebay/blueflow/internal/config"
	"github.com/asquebay/blueflow/internal/queue"
	"github.com/asquebay/blueflow/internal/repository/file"
	"github.com/asquebay/blueflow/internal/repository/memory"
	"github.com/asquebay/blueflow/internal/repository/postgres"
	"github.com/asquebay/blueflow/internal/service"
	"github.com/asquebay/blueflow/internal/transport/kafka"
	"github.com/asquebay/blueflow/internal/transport/rabbitmq"
)

func rules(cfg *config.Config) queue.Rules {
	return queue.Rules{
		Params: cfg.Throttling.Params(),
		Menu:   cfg.Menu.Items,
	}
}

// newStore выбирает хранилище по storage.backend, второе значение закрывает ресурсы
func newStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (service.OrderStore, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		log.Info("using in-memory order store, orders are lost on restart")
		return memory.NewOrderStore(), func() {}, nil
	case "file":
		log.Info("using file order store", slog.String("path", cfg.Storage.FilePath))
		return file.NewOrderStore(cfg.Storage.FilePath, log), func() {}, nil
	case "postgres":
		dbpool, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		log.Info("successfully connected to postgres")
		return postgres.NewOrderRepository(dbpool), dbpool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newPublisher выбирает, куда публиковать события по events.backend
func newPublisher(cfg *config.Config, log *slog.Logger) (service.EventPublisher, func(), error) {
	switch cfg.Events.Backend {
	case "", "none":
		return service.NopPublisher{}, func() {}, nil
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		log.Info("publishing order events to kafka", slog.String("topic", cfg.Kafka.EventsTopic))
		return producer, closer(producer.Close, log, "kafka producer"), nil
	case "rabbitmq":
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return nil, nil, err
		}
		log.Info("publishing order events to rabbitmq", slog.String("exchange", cfg.RabbitMQ.Exchange))
		return publisher, closer(publisher.Close, log, "rabbitmq publisher"), nil
	default:
		return nil, nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}
}

func closer(fn func() error, log *slog.Logger, what string) func() {
	return func() {
		if err := fn(); err != nil {
			log.Error("failed to close "+what, slog.String("error", err.Error()))
		}
	}
}
