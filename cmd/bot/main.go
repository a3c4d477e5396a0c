package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/aid003/SKUF-BOT/internal/announce"
	"github.com/aid003/SKUF-BOT/internal/bot"
	"github.com/aid003/SKUF-BOT/internal/broadcast"
	"github.com/aid003/SKUF-BOT/internal/config"
	"github.com/aid003/SKUF-BOT/internal/report"
	"github.com/aid003/SKUF-BOT/internal/storage"
	"github.com/aid003/SKUF-BOT/internal/transport/telegram"
	"github.com/aid003/SKUF-BOT/internal/webhook"
	logx "github.com/aid003/SKUF-BOT/pkg/logx"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer logSvc.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeout.Std(),
	}, log.With(logx.String("svc", "storage")))
	if err != nil {
		log.Error("storage open failed", logx.Err(err))
		os.Exit(1)
	}
	defer store.Close()

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.Telegram.PollTimeout.Std(),
	}, log.With(logx.String("svc", "telegram")))
	if err != nil {
		log.Error("telegram init failed", logx.Err(err))
		os.Exit(1)
	}

	bcast := broadcast.New(broadcast.Config{
		Role:      cfg.Broadcast.Role,
		Limit:     cfg.Broadcast.Limit,
		ChunkSize: cfg.Broadcast.ChunkSize,
		Pacing:    cfg.Broadcast.Pacing.Std(),
	}, store, adapter, log.With(logx.String("svc", "broadcast")))

	ann := announce.NewClient(cfg.Announce.BaseURL, cfg.Announce.Timeout.Std(),
		log.With(logx.String("svc", "announce")))

	handlers := bot.New(store, bcast, ann, cfg.Payments,
		log.With(logx.String("svc", "bot")))
	handlers.Register(adapter.Bot())

	srv := webhook.New(cfg.Webhook, store, adapter,
		log.With(logx.String("svc", "webhook")))
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("webhook server failed", logx.Err(err))
			cancel()
		}
	}()

	daily := report.New(cfg.Report, store, adapter,
		log.With(logx.String("svc", "report")))
	if err := daily.Start(); err != nil {
		log.Error("daily report init failed", logx.Err(err))
		os.Exit(1)
	}

	// Only the logging section is applied on the fly; the rest of the
	// config takes effect after a restart.
	go func() {
		err := config.Watch(ctx, cfgPath, log.With(logx.String("svc", "config")), func(next *config.Config) {
			logSvc.Apply(logx.Config{
				Level:   next.Logging.Level,
				Console: next.Logging.Console,
				File: logx.FileConfig{
					Enabled: next.Logging.File.Enabled,
					Path:    next.Logging.File.Path,
				},
			})
		})
		if err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	adapter.Start(ctx)
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("bot started",
		logx.String("role", cfg.Broadcast.Role),
		logx.String("webhook_addr", cfg.Webhook.Addr))

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info("shutting down")

	daily.Stop()
	shCtx, shCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shCancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Warn("webhook shutdown failed", logx.Err(err))
	}
	adapter.Stop()
}
