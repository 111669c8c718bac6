package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/campushub/library-circulation-service/config"
	"github.com/campushub/library-circulation-service/internal/notifier"
	"github.com/campushub/library-circulation-service/internal/sweep"
	"github.com/campushub/library-circulation-service/pkg/broker"
	"github.com/campushub/library-circulation-service/pkg/cache"
	"github.com/campushub/library-circulation-service/pkg/logger"
	"github.com/campushub/library-circulation-service/pkg/postgres"

	circRepoPkg "github.com/campushub/library-circulation-service/internal/circulation/repository"
	circUCPkg "github.com/campushub/library-circulation-service/internal/circulation/usecase"

	fineRepoPkg "github.com/campushub/library-circulation-service/internal/fine/repository"
	fineUCPkg "github.com/campushub/library-circulation-service/internal/fine/usecase"

	resRepoPkg "github.com/campushub/library-circulation-service/internal/reservation/repository"
	resUCPkg "github.com/campushub/library-circulation-service/internal/reservation/usecase"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	appLogger := logger.NewZapLogger(&logger.Config{
		Level:             cfg.Logger.Level,
		Encoding:          cfg.Logger.Encoding,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5. Initialize Kafka Producer
	producer := broker.NewProducer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	})
	defer producer.Close()
	appLogger.Info("Connected to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

	sink := notifier.NewKafkaSink(producer)
	directory := notifier.PassthroughDirectory{}

	// 6. Initialize Repositories
	circRepo := circRepoPkg.NewPGRepository(db)
	resRepo := resRepoPkg.NewPGRepository(db)
	fineRepo := fineRepoPkg.NewPGRepository(db)

	// 7. Initialize UseCases
	fineUC := fineUCPkg.NewFineUseCase(fineRepo, redisClient, cfg.Policy, appLogger)
	resUC := resUCPkg.NewReservationUseCase(resRepo, redisClient, sink, directory, cfg.Policy, appLogger)
	circUC := circUCPkg.NewCirculationUseCase(circRepo, fineUC, redisClient, sink, directory, cfg.Policy, appLogger)

	// 8. Start Sweeper
	sweeper := sweep.NewSweeper(circUC, resUC, cfg.Sweep.Interval, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Start(ctx)

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down sweeper...")
	cancel()
	appLogger.Info("Sweeper stopped")
}
