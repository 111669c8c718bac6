package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/campushub/library-circulation-service/internal/model"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Sweep    SweepConfig
	Policy   model.Policy
}

type ServerConfig struct {
	AppEnv string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type SweepConfig struct {
	Interval time.Duration
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv: getEnv("APP_ENV", "dev"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5432"),
			User:            getEnv("POSTGRES_USER", "library"),
			Password:        getEnv("POSTGRES_PASSWORD", "library"),
			DBName:          getEnv("POSTGRES_DB", "library_circulation"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC_NOTIFICATIONS", "notifications.events"),
		},
		Sweep: SweepConfig{
			Interval: time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", 60)) * time.Minute,
		},
		Policy: model.Policy{
			BorrowingPeriodDays:       getEnvInt("POLICY_BORROWING_PERIOD_DAYS", 14),
			MaxRenewals:               getEnvInt("POLICY_MAX_RENEWALS", 2),
			BorrowingLimit:            getEnvInt("POLICY_BORROWING_LIMIT", 3),
			DailyFineRate:             getEnvDecimal("POLICY_DAILY_FINE_RATE", "5"),
			LostFeeMultiplier:         getEnvInt("POLICY_LOST_FEE_MULTIPLIER", 2),
			DamagedFee:                getEnvDecimal("POLICY_DAMAGED_FEE", "25"),
			ReservationPendingDays:    getEnvInt("POLICY_RESERVATION_PENDING_DAYS", 30),
			ReservationCollectionDays: getEnvInt("POLICY_RESERVATION_COLLECTION_DAYS", 3),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}

func getEnvDecimal(key, fallback string) decimal.Decimal {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(fallback)
}
