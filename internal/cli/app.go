package cli

import (
	"fmt"
	"log/slog"

	"github.com/mgriffe/keepsake/internal/backup"
	"github.com/mgriffe/keepsake/internal/config"
	"github.com/mgriffe/keepsake/internal/kv"
	"github.com/mgriffe/keepsake/internal/legacy"
	"github.com/mgriffe/keepsake/internal/logging"
	"github.com/mgriffe/keepsake/internal/notify"
	"github.com/mgriffe/keepsake/internal/scheduler"
	"github.com/mgriffe/keepsake/internal/server"
	"github.com/mgriffe/keepsake/internal/share"
	"github.com/mgriffe/keepsake/internal/store"
)

// app holds the wired subsystem shared by the serve, monitor, sweep, and
// backup commands.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	kv     *kv.SQLiteStore

	shares    *share.Service
	monitor   *legacy.Monitor
	worker    *notify.Worker
	scheduler *scheduler.Scheduler
	server    *server.Server
	backups   *backup.Manager
}

func buildApp() (*app, error) {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	kvStore, err := kv.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	accounts := store.NewAccountStore(kvStore)
	beneficiaries := store.NewBeneficiaryStore(kvStore)
	grants := store.NewGrantStore(kvStore)
	warnings := store.NewWarningStore(kvStore)
	links := store.NewShareLinkStore(kvStore)
	queue := store.NewQueueStore(kvStore)
	pushSubs := store.NewPushStore(kvStore)
	backupRecords := store.NewBackupStore(kvStore)

	mailer := notify.NewMailer(cfg.PostmarkToken, cfg.FromEmail)
	if !mailer.Configured() {
		logger.Warn("postmark token not set, outgoing email will fail")
	}
	notifier := notify.NewService(mailer, queue, logger.With("component", "notify"))
	worker := notify.NewWorker(queue, mailer, logger.With("component", "notify_worker"))

	shares := share.NewService(links, cfg.BaseURL, logger.With("component", "share"))
	manager := legacy.NewGrantManager(accounts, beneficiaries, grants, notifier,
		cfg.BaseURL, cfg.SendPause, logger.With("component", "grants"))
	monitor := legacy.NewMonitor(accounts, beneficiaries, warnings, manager, notifier,
		logger.With("component", "monitor"))

	srv := server.New(shares, links, monitor, grants, logger)

	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushSvc := notify.NewPushService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
		monitor.EnablePush(pushSvc, pushSubs)
		srv.EnablePush(pushSvc, pushSubs)
	}

	sched := scheduler.New(monitor, worker, shares, srv.RateLimiter(),
		cfg.MonitorInterval, cfg.SweepInterval, logger.With("component", "scheduler"))
	backups := backup.NewManager(cfg.Backup, kvStore.DB(), backupRecords,
		logger.With("component", "backup"))

	return &app{
		cfg:       cfg,
		logger:    logger,
		kv:        kvStore,
		shares:    shares,
		monitor:   monitor,
		worker:    worker,
		scheduler: sched,
		server:    srv,
		backups:   backups,
	}, nil
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		a.logger.Error("close database", "error", err)
	}
}
