package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/inboxcopilot/triage-worker/internal/config"
	"github.com/inboxcopilot/triage-worker/internal/crypto"
	"github.com/inboxcopilot/triage-worker/internal/database"
	"github.com/inboxcopilot/triage-worker/internal/gmail"
	"github.com/inboxcopilot/triage-worker/internal/llm"
	"github.com/inboxcopilot/triage-worker/internal/logging"
	"github.com/inboxcopilot/triage-worker/internal/metrics"
	"github.com/inboxcopilot/triage-worker/internal/push"
	"github.com/inboxcopilot/triage-worker/internal/repository"
	"github.com/inboxcopilot/triage-worker/internal/server"
	"github.com/inboxcopilot/triage-worker/internal/service"
	"github.com/inboxcopilot/triage-worker/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	logger.Info("database connected")

	if err := database.RunMigrations(db); err != nil {
		return err
	}
	logger.Info("migrations applied")

	// Repositories
	accountRepo := repository.NewGmailAccountRepository(db)
	bucketRepo := repository.NewBucketRepository(db)
	itemRepo := repository.NewEmailItemRepository(db)
	draftRepo := repository.NewReplyDraftRepository(db)
	contextRepo := repository.NewContextPackRepository(db)
	subscriptionRepo := repository.NewPushSubscriptionRepository(db)
	runRepo := repository.NewProcessingRunRepository(db)

	// Clients
	tokenCipher, err := crypto.NewCipher(cfg.TokenEncryptionKey)
	if err != nil {
		return err
	}
	gmailClient := gmail.NewClient(cfg.GoogleClientID, cfg.GoogleClientSecret)
	llmClient, err := llm.New(context.Background(), cfg)
	if err != nil {
		return err
	}

	m := metrics.New()

	var notifier service.Notifier
	sender, err := push.NewWebPushSender(cfg.VAPIDSubject, cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	if err != nil {
		logger.Warn("web push disabled", zap.Error(err))
		notifier = noopNotifier{}
	} else {
		notifier = push.NewDispatcher(subscriptionRepo, sender, logger)
	}

	pipeline := service.NewPipeline(itemRepo, draftRepo, bucketRepo, contextRepo, llmClient, notifier, m, logger)
	poller := service.NewPoller(
		accountRepo, itemRepo, runRepo, gmailClient, tokenCipher, pipeline, m, logger,
		cfg.MaxAccountsPerRun, cfg.MaxItemsPerAccount,
	)

	w := watcher.New(poller, time.Duration(cfg.PollInterval)*time.Second, logger)

	srv := server.New(
		cfg, logger, poller, llmClient,
		itemRepo, draftRepo, contextRepo, accountRepo,
		gmailClient, tokenCipher, m.Handler(),
	)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Router(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 2)
	go func() {
		errChan <- w.Start(ctx)
	}()
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown error", zap.Error(err))
		}

		select {
		case <-shutdownCtx.Done():
			logger.Warn("shutdown timeout exceeded")
		case err := <-errChan:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("watcher error", zap.Error(err))
			}
		}

		logger.Info("application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}

// noopNotifier stands in when VAPID keys are not configured.
type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, userID string, n push.Notification) int { return 0 }
