package app

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campusops/equipment-service/config"
	"github.com/campusops/equipment-service/internal/handler"
	"github.com/campusops/equipment-service/internal/repository"
	"github.com/campusops/equipment-service/internal/repository/inmem"
	"github.com/campusops/equipment-service/internal/server"
	"github.com/campusops/equipment-service/internal/service"
	"github.com/campusops/equipment-service/migrations"
	"github.com/campusops/equipment-service/pkg/kafka"
	"github.com/campusops/equipment-service/pkg/logger"
	"github.com/campusops/equipment-service/pkg/postgres"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "equipment")

	var (
		store   repository.Store
		closeDB = func() {}
	)
	if cfg.Database.InMem {
		log.Warn("running on the in-memory store")
		store = inmem.New()
	} else {
		db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
		if err != nil {
			log.Fatal("db init", zap.Error(err))
		}
		repo, err := repository.NewRepository(db, log)
		if err != nil {
			log.Fatal("repo", zap.Error(err))
		}
		store = repo
		closeDB = func() { db.Close() }
	}
	defer closeDB()

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		log.Fatal("kafka.NewProducer", zap.Error(err))
	}
	consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.ConsumerGroup)
	if err != nil {
		log.Fatal("kafka.NewConsumer", zap.Error(err))
	}

	clock := service.NewClock()
	ledger := service.NewLedger(store, log)
	borrowing := service.NewBorrowing(store, ledger, clock, log)
	equipment := service.NewEquipment(store, ledger, kafka.NewEnqueuer(producer), log)
	reconciler := service.NewReconciler(store, ledger, clock, cfg.Reconciler.Interval, log)

	h := handler.New(equipment, borrowing, reconciler, cfg.Auth, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())

	runCtx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		log.Info("http server start ON: ",
			zap.String("addr",
				net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
		return srv.Run()
	})
	g.Go(func() error {
		return reconciler.Start(ctx)
	})
	g.Go(func() error {
		kafka.Consume(ctx, consumer, handler.NewConsumer(ledger.Resize, log), kafka.StockTopic, log)
		return nil
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second*5)
	defer closeCancel()

	if err := srv.Stop(closeCtx); err != nil {
		log.Error("srv.Stop", zap.Error(err))
	}
	cancel()
	if err := consumer.Close(); err != nil {
		log.Error("consumer.Close", zap.Error(err))
	}
	if err := producer.Close(); err != nil {
		log.Error("producer.Close", zap.Error(err))
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("shutdown", zap.Error(err))
	}
	log.Info("Graceful shutdown finished")
}
