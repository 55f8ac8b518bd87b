// Command scheduler runs the periodic exchange cycles on cron schedules
// taken from configuration.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/gip-inclusion/employee-records/internal/adapters/repository/postgres"
	"github.com/gip-inclusion/employee-records/internal/core/employeerecord"
	"github.com/gip-inclusion/employee-records/internal/core/notification"
	"github.com/gip-inclusion/employee-records/internal/core/transfer"
	"github.com/gip-inclusion/employee-records/internal/platform/config"
	pg "github.com/gip-inclusion/employee-records/internal/platform/db/postgres"
	"github.com/gip-inclusion/employee-records/internal/platform/events"
	"github.com/gip-inclusion/employee-records/internal/platform/logging"
	"github.com/gip-inclusion/employee-records/internal/platform/transport"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(effectiveConfigPath(*configPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(cfg.Logging)

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database pool: %v", err)
	}
	defer dbPool.Close()

	gateway, closeGateway, err := newTransport(cfg.Transfer)
	if err != nil {
		logger.Fatalf("failed to initialize transport: %v", err)
	}
	defer closeGateway()

	publisher, err := events.NewPublisher(ctx, cfg.Redis)
	if err != nil {
		logger.Warnf("event publishing disabled: %v", err)
	}
	defer publisher.Close()

	txManager := pg.NewTransactionManager(dbPool)
	recordRepo := postgres.NewEmployeeRecordRepository(dbPool)
	notificationRepo := postgres.NewNotificationRepository(dbPool)
	notifier := notification.NewService(notificationRepo, nil, txManager)
	recordSvc := employeerecord.NewService(recordRepo, nil, txManager)

	opts := transfer.Options{Logger: logger}
	if publisher != nil {
		opts.Publisher = publisher
	}
	svc := transfer.NewService(recordRepo, notificationRepo, notifier, gateway, txManager, opts)

	scheduler := cron.New()
	schedule(scheduler, logger, cfg.Scheduler.UploadSpec, "upload", func() error {
		_, err := svc.Upload(ctx)
		return err
	})
	schedule(scheduler, logger, cfg.Scheduler.DownloadSpec, "download", func() error {
		_, err := svc.Download(ctx)
		return err
	})
	schedule(scheduler, logger, cfg.Scheduler.UpdatesSpec, "updates", func() error {
		_, err := svc.UploadUpdates(ctx)
		return err
	})
	schedule(scheduler, logger, cfg.Scheduler.ArchiveSpec, "archive", func() error {
		_, err := recordSvc.ArchiveStale(ctx, employeerecord.ArchiveStaleInput{Limit: 1000})
		return err
	})

	scheduler.Start()
	logger.Info("scheduler started")

	<-ctx.Done()
	<-scheduler.Stop().Done()
	logger.Info("scheduler stopped")
}

func schedule(scheduler *cron.Cron, logger logrus.FieldLogger, spec, name string, run func() error) {
	if spec == "" {
		return
	}
	if _, err := scheduler.AddFunc(spec, func() {
		if err := run(); err != nil {
			logger.Errorf("%s cycle failed: %v", name, err)
		}
	}); err != nil {
		log.Fatalf("invalid %s cron spec %q: %v", name, spec, err)
	}
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

func newTransport(cfg config.TransferConfig) (transfer.Transport, func(), error) {
	if cfg.Mode == "sftp" {
		gateway, err := transport.DialSFTP(cfg)
		if err != nil {
			return nil, nil, err
		}
		return gateway, func() { _ = gateway.Close() }, nil
	}

	gateway, err := transport.NewLocalTransport(cfg.LocalDir, cfg.UploadDir, cfg.FeedbackDir)
	if err != nil {
		return nil, nil, err
	}
	return gateway, func() {}, nil
}
