package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-feed/feed-service/internal/config"
	"github.com/weiawesome/wes-feed/feed-service/internal/consumer"
	"github.com/weiawesome/wes-feed/feed-service/internal/domain"
	"github.com/weiawesome/wes-feed/feed-service/internal/handler"
	"github.com/weiawesome/wes-feed/feed-service/internal/metrics"
	"github.com/weiawesome/wes-feed/feed-service/internal/reconciler"
	"github.com/weiawesome/wes-feed/feed-service/internal/repository"
	"github.com/weiawesome/wes-feed/feed-service/internal/service"
	"github.com/weiawesome/wes-feed/feed-service/internal/store"
	"github.com/weiawesome/wes-feed/pkg/database"
	pkglog "github.com/weiawesome/wes-feed/pkg/log"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "feed-service",
	})
	logger := pkglog.L()

	// 3. Init DB (GORM, auto-migrate users/posts/likes)
	dbConfig := &database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}

	db, err := database.New(dbConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get underlying sql.DB")
	}
	defer sqlDB.Close()

	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	// Delete events must carry the full before-row so the CDC consumer
	// knows which post lost a like.
	if cfg.Database.Driver == "postgres" {
		if err := db.Exec(`ALTER TABLE likes REPLICA IDENTITY FULL`).Error; err != nil {
			logger.Fatal().Err(err).Msg("failed to set REPLICA IDENTITY FULL on likes table")
		}
		logger.Info().Msg("likes table REPLICA IDENTITY FULL set")
	}

	// 4. Init Redis client
	redisStore, err := store.NewRedisLikeStore(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisStore.Close()
	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")

	// 5. Create repos and services
	userRepo := repository.NewGormUserRepository(db)
	postRepo := repository.NewGormPostRepository(db)
	likeRepo := repository.NewGormLikeRepository(db)

	ledger := service.NewLikeLedger(likeRepo, redisStore)
	userSvc := service.NewUserService(userRepo)
	postSvc := service.NewPostService(postRepo, ledger)

	// 6. Init Kafka consumer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var kafkaConsumer *consumer.ConfluentConsumer
	if cfg.Kafka.Brokers != "" {
		kc, err := consumer.NewConfluentConsumer(cfg.Kafka, ledger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka consumer, CDC invalidation disabled")
		} else {
			// Start releases the client itself when the subscription fails.
			if err := kc.Start(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to start kafka consumer, CDC invalidation disabled")
			} else {
				kafkaConsumer = kc
			}
		}
	} else {
		logger.Warn().Msg("KAFKA_BROKERS not configured; CDC consumer disabled")
	}

	// 7. Init reconciler and start
	rec := reconciler.New(redisStore, likeRepo, cfg.Reconciler)
	rec.Start(ctx)
	logger.Info().Dur("interval", cfg.Reconciler.Interval).Int("top_n", cfg.Reconciler.TopN).Msg("reconciler started")

	// 8. Setup Gin router + HTTP server
	if err := handler.RegisterValidators(); err != nil {
		logger.Fatal().Err(err).Msg("failed to register validators")
	}
	httpHandler := handler.NewHandler(userSvc, postSvc, ledger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	r.Use(metrics.GinMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	httpHandler.RegisterRoutes(r)

	// 9. Start server goroutine
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Msg("feed-service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 10. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// Stop the consumer loop and reconciler ticker.
		cancel()

		if kafkaConsumer != nil {
			if err := kafkaConsumer.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing kafka consumer")
			}
		}

		rec.Stop()
		<-rec.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("feed-service stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
