package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/asquebay/blueflow/internal/queue"
)

// EnvPrefix: префикс переменных окружения, которые перекрывают значения из файла
const EnvPrefix = "BLUEFLOW"

// Config определяет структуру конфигурации всего приложения целиком
type Config struct {
	HTTPServer `yaml:"http_server"`
	Storage    `yaml:"storage"`
	Postgres   `yaml:"postgres"`
	Kafka      `yaml:"kafka"`
	RabbitMQ   `yaml:"rabbitmq"`
	Events     `yaml:"events"`
	Throttling `yaml:"throttling"`
	Kitchen    `yaml:"kitchen"`
	Menu       `yaml:"menu"`
	Refresh    `yaml:"refresh"`
	Logger     `yaml:"logger"`
}

// HTTPServer содержит конфигурацию для HTTP-сервера
type HTTPServer struct {
	Port    string        `yaml:"port" envconfig:"HTTP_PORT" validate:"required"`
	Timeout time.Duration `yaml:"timeout" envconfig:"HTTP_TIMEOUT"`
}

// Storage выбирает бэкенд хранилища заказов
type Storage struct {
	Backend  string `yaml:"backend" envconfig:"STORAGE_BACKEND" validate:"oneof=memory file postgres"`
	FilePath string `yaml:"file_path" envconfig:"STORAGE_FILE_PATH" validate:"required_if=Backend file"`
}

// Postgres содержит конфигурацию для подключения к базе данных
type Postgres struct {
	User     string `yaml:"user" envconfig:"PG_USER"`
	Password string `yaml:"password" envconfig:"PG_PASSWORD"`
	Host     string `yaml:"host" envconfig:"PG_HOST"`
	Port     string `yaml:"port" envconfig:"PG_PORT"`
	DBName   string `yaml:"db_name" envconfig:"PG_DB_NAME"`
	SSLMode  string `yaml:"ssl_mode" envconfig:"PG_SSL_MODE"`
	MaxConns int32  `yaml:"max_conns" envconfig:"PG_MAX_CONNS"`
}

// Kafka содержит конфигурацию для подключения к кафке
// Topic принимает заказы от киосков, в EventsTopic уходят события по заказам
type Kafka struct {
	Enabled     bool     `yaml:"enabled" envconfig:"KAFKA_ENABLED"`
	Brokers     []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic       string   `yaml:"topic" envconfig:"KAFKA_TOPIC"`
	GroupID     string   `yaml:"group_id" envconfig:"KAFKA_GROUP_ID"`
	EventsTopic string   `yaml:"events_topic" envconfig:"KAFKA_EVENTS_TOPIC"`
}

// RabbitMQ содержит конфигурацию fanout-обменника для событий
type RabbitMQ struct {
	URL      string `yaml:"url" envconfig:"RABBITMQ_URL"`
	Exchange string `yaml:"exchange" envconfig:"RABBITMQ_EXCHANGE"`
}

// Events выбирает, куда публиковать события по заказам
type Events struct {
	Backend string `yaml:"backend" envconfig:"EVENTS_BACKEND" validate:"oneof=none kafka rabbitmq"`
}

// Throttling: константы движка троттлинга
type Throttling struct {
	CapacityPerHour  float64 `yaml:"capacity_per_hour" envconfig:"CAPACITY_PER_HOUR" validate:"gt=0"`
	WarningMinutes   float64 `yaml:"warning_minutes" envconfig:"WARNING_MINUTES" validate:"gte=0"`
	CriticalMinutes  float64 `yaml:"critical_minutes" envconfig:"CRITICAL_MINUTES" validate:"gtefield=WarningMinutes"`
	TotalSeats       int     `yaml:"total_seats" envconfig:"TOTAL_SEATS" validate:"gte=0"`
	SeatWarningRatio float64 `yaml:"seat_warning_ratio" envconfig:"SEAT_WARNING_RATIO" validate:"gte=0,lte=1"`
}

// Kitchen: схема работы кухонного экрана
type Kitchen struct {
	TwoStage bool `yaml:"two_stage" envconfig:"KITCHEN_TWO_STAGE"`
}

// Menu: позиции, которые можно заказать
type Menu struct {
	Items []queue.MenuItem `yaml:"items" ignored:"true" validate:"min=1,dive"`
}

// Refresh: период пересчёта метрик для живого экрана
type Refresh struct {
	Interval time.Duration `yaml:"interval" envconfig:"REFRESH_INTERVAL" validate:"gt=0"`
}

// Logger содержит конфигурацию для логгера
type Logger struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT" validate:"omitempty,oneof=text json"`
}

// Default возвращает конфигурацию прототипа: память, 60 позиций в час, пороги 15/30
func Default() Config {
	p := queue.DefaultParams()
	return Config{
		HTTPServer: HTTPServer{Port: ":8080", Timeout: 10 * time.Second},
		Storage:    Storage{Backend: "memory", FilePath: "orders.json"},
		Postgres:   Postgres{Host: "localhost", Port: "5432", SSLMode: "disable", MaxConns: 10},
		Kafka:      Kafka{Topic: "order-requests", GroupID: "blueflow", EventsTopic: "order-events"},
		RabbitMQ:   RabbitMQ{Exchange: "order_events"},
		Events:     Events{Backend: "none"},
		Throttling: Throttling{
			CapacityPerHour:  p.CapacityPerHour,
			WarningMinutes:   p.WarningMinutes,
			CriticalMinutes:  p.CriticalMinutes,
			TotalSeats:       p.TotalSeats,
			SeatWarningRatio: p.SeatWarningRatio,
		},
		Menu:    Menu{Items: queue.DefaultMenu()},
		Refresh: Refresh{Interval: 5 * time.Second},
		Logger:  Logger{Level: "INFO", Format: "text"},
	}
}

var validate = validator.New()

// Load читает yaml поверх значений по умолчанию, применяет переменные окружения и проверяет результат
func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if configPath == "" {
		return nil, fmt.Errorf("%s: config path is empty", op)
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read config file: %w", op, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal config: %w", op, err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to apply env overrides: %w", op, err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}

	return &cfg, nil
}

// MustLoad загружает конфигурацию из файла по указанному пути
// в случае ошибки программа завершается с фатальной ошибкой
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// Params переводит секцию throttling в параметры движка
func (t Throttling) Params() queue.Params {
	return queue.Params{
		CapacityPerHour:  t.CapacityPerHour,
		WarningMinutes:   t.WarningMinutes,
		CriticalMinutes:  t.CriticalMinutes,
		TotalSeats:       t.TotalSeats,
		SeatWarningRatio: t.SeatWarningRatio,
	}
}

// Mode переводит флаг two_stage в режим продвижения заказов
func (k Kitchen) Mode() queue.Mode {
	if k.TwoStage {
		return queue.TwoStage
	}
	return queue.SingleStage
}

// DSN собирает строку подключения для pgxpool
func (p Postgres) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// MigrateURL собирает URL для golang-migrate (драйвер pgx5)
func (p Postgres) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Host + ":" + p.Port,
		Path:     "/" + p.DBName,
		RawQuery: url.Values{"sslmode": {p.SSLMode}}.Encode(),
	}
	return u.String()
}
