// Package report sends a daily usage summary to every admin on a cron
// schedule.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aid003/SKUF-BOT/internal/config"
	"github.com/aid003/SKUF-BOT/internal/storage"
	"github.com/aid003/SKUF-BOT/internal/transport"
	logx "github.com/aid003/SKUF-BOT/pkg/logx"
)

const (
	runTimeout = 2 * time.Minute

	// Safety cap for the admin lookup. Far beyond any realistic admin count.
	maxAdmins = 1000
)

type Service struct {
	cfg    config.ReportConfig
	store  storage.Store
	sender transport.Sender
	log    logx.Logger
	cron   *cron.Cron
}

func New(cfg config.ReportConfig, store storage.Store, sender transport.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: store, sender: sender, log: log}
}

// Start schedules the daily report. It is a no-op when reporting is
// disabled in the config.
func (s *Service) Start() error {
	if !s.cfg.Enabled {
		s.log.Info("daily report disabled")
		return nil
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.run); err != nil {
		return fmt.Errorf("report: schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	s.log.Info("daily report scheduled", logx.String("schedule", s.cfg.Schedule))
	return nil
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Service) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	stats, err := s.store.Stats(ctx, time.Now())
	if err != nil {
		s.log.Error("daily report stats query failed", logx.Err(err))
		return
	}
	admins, err := s.store.FindIDsByRole(ctx, config.RoleAdmin, maxAdmins)
	if err != nil {
		s.log.Error("daily report admin lookup failed", logx.Err(err))
		return
	}
	if len(admins) == 0 {
		s.log.Warn("daily report skipped, no admins registered")
		return
	}

	msg := FormatStats(stats)
	opt := &transport.SendOptions{ParseMode: transport.ParseModeMarkdown}
	var delivered int
	for _, a := range admins {
		if err := s.sender.SendText(ctx, a.ID, msg, opt); err != nil {
			s.log.Warn("daily report delivery failed",
				logx.Int64("admin_id", a.ID), logx.Err(err))
			continue
		}
		delivered++
	}
	s.log.Info("daily report sent",
		logx.Int("admins", len(admins)), logx.Int("delivered", delivered))
}

// FormatStats renders the stats message shared by the /stats command and
// the daily report.
func FormatStats(st storage.Stats) string {
	return fmt.Sprintf(
		"📊 *Статистика бота*\n\n"+
			"👥 Всего пользователей: *%d*\n"+
			"🛡 Администраторов: *%d*\n"+
			"🆕 Зарегистрировано сегодня: *%d*\n"+
			"⭐️ Premium пользователей: *%d*",
		st.TotalUsers, st.TotalAdmins, st.RegisteredToday, st.PremiumUsers)
}
