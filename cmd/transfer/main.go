// Command transfer runs one exchange cycle with the ASP gateway: uploading
// ready employee records, downloading and applying feedback, or pushing
// approval update notifications.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

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
	var (
		configPath = flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
		upload     = flag.Bool("upload", false, "upload ready employee records")
		download   = flag.Bool("download", false, "download and apply feedback files")
		updates    = flag.Bool("updates", false, "upload pending approval update notifications")
		archive    = flag.Bool("archive", false, "archive stale processed records")
		preflight  = flag.Bool("preflight", false, "check serialization and gateway connectivity, change nothing")
		dryRun     = flag.Bool("dry-run", false, "serialize and report without uploading or mutating")
	)
	flag.Parse()

	if !*upload && !*download && !*updates && !*archive && !*preflight {
		flag.Usage()
		os.Exit(2)
	}

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

	opts := transfer.Options{Logger: logger, DryRun: *dryRun}
	if publisher != nil {
		opts.Publisher = publisher
	}
	svc := transfer.NewService(recordRepo, notificationRepo, notifier, gateway, txManager, opts)

	if *preflight {
		if err := svc.Preflight(ctx); err != nil {
			logger.Fatalf("preflight failed: %v", err)
		}
		logger.Info("preflight passed")
	}

	if *upload {
		result, err := svc.Upload(ctx)
		if err != nil {
			logger.Fatalf("upload failed: %v", err)
		}
		logger.Infof("upload done: file=%s sent=%d skipped=%d", result.Filename, result.Sent, result.Skipped)
	}

	if *download {
		result, err := svc.Download(ctx)
		if err != nil {
			logger.Fatalf("download failed: %v", err)
		}
		logger.Infof("download done: files=%d processed=%d rejected=%d skipped=%d",
			result.Files, result.Processed, result.Rejected, result.Skipped)
	}

	if *updates {
		result, err := svc.UploadUpdates(ctx)
		if err != nil {
			logger.Fatalf("updates upload failed: %v", err)
		}
		logger.Infof("updates done: file=%s sent=%d skipped=%d", result.Filename, result.Sent, result.Skipped)
	}

	if *archive {
		recordSvc := employeerecord.NewService(recordRepo, nil, txManager)
		result, err := recordSvc.ArchiveStale(ctx, employeerecord.ArchiveStaleInput{Limit: 1000})
		if err != nil {
			logger.Fatalf("archiving failed: %v", err)
		}
		logger.Infof("archiving done: archived=%d skipped=%d", result.Archived, result.Skipped)
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
