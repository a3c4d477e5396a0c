// Package broadcast implements the admin broadcast dispatch engine:
// staging one creative per admin, resolving the target audience, and
// fanning delivery out in rate-limited chunks with per-recipient failure
// isolation.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/aid003/SKUF-BOT/internal/metrics"
	"github.com/aid003/SKUF-BOT/internal/storage"
	kit "github.com/aid003/SKUF-BOT/internal/transport"
	logx "github.com/aid003/SKUF-BOT/pkg/logx"
)

var (
	ErrNotAdmin      = errors.New("broadcast: actor is not an admin")
	ErrNothingStaged = errors.New("broadcast: no creative staged")
	ErrNoRecipients  = errors.New("broadcast: audience is empty")
)

// UserDirectory is the slice of the user store the engine needs.
type UserDirectory interface {
	IsAdmin(ctx context.Context, id int64) (bool, error)
	FindIDsByRole(ctx context.Context, role string, limit int) ([]storage.UserRef, error)
	IncrementSentCount(ctx context.Context, id int64) error
}

type Service struct {
	cfg     Config
	staging *Staging
	users   UserDirectory
	sender  kit.Sender
	log     logx.Logger
}

func New(cfg Config, users UserDirectory, sender kit.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg.withDefaults(),
		staging: NewStaging(),
		users:   users,
		sender:  sender,
		log:     log,
	}
}

// Stage validates the creative and parks it in the admin's slot,
// overwriting any previous one.
func (s *Service) Stage(ctx context.Context, adminID int64, c Creative) error {
	ok, err := s.users.IsAdmin(ctx, adminID)
	if err != nil {
		return fmt.Errorf("admin check: %w", err)
	}
	if !ok {
		return ErrNotAdmin
	}
	if err := c.Validate(); err != nil {
		return err
	}
	s.staging.Stage(adminID, c)
	s.log.Debug("creative staged",
		logx.Int64("admin_id", adminID), logx.String("kind", string(c.Kind)))
	return nil
}

// Staged reports whether the admin currently has a pending creative.
func (s *Service) Staged(adminID int64) (Creative, bool) {
	return s.staging.Peek(adminID)
}

// Begin performs the confirm-time checks: authorization first, then
// staged-creative existence, then audience resolution. On success the
// staged slot is already cleared and the returned Job is ready for Run.
//
// An empty audience clears the slot and returns ErrNoRecipients; a store
// failure puts the creative back so the admin can retry.
func (s *Service) Begin(ctx context.Context, adminID int64) (*Job, error) {
	ok, err := s.users.IsAdmin(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("admin check: %w", err)
	}
	if !ok {
		return nil, ErrNotAdmin
	}

	creative, ok := s.staging.Take(adminID)
	if !ok {
		return nil, ErrNothingStaged
	}

	refs, err := s.users.FindIDsByRole(ctx, s.cfg.Role, s.cfg.Limit)
	if err != nil {
		s.staging.Stage(adminID, creative)
		return nil, fmt.Errorf("resolve audience: %w", err)
	}
	if len(refs) == 0 {
		return nil, ErrNoRecipients
	}

	recipients := make([]Recipient, len(refs))
	for i, ref := range refs {
		recipients[i] = Recipient{ID: ref.ID, Role: s.cfg.Role}
	}

	return &Job{
		AdminID:         adminID,
		Creative:        creative,
		Recipients:      recipients,
		EstimateSeconds: EstimateSeconds(len(recipients), s.cfg.ChunkSize),
	}, nil
}

// Run executes the job to completion: chunks are dispatched strictly
// sequentially with the configured pacing between them, recipients within
// a chunk concurrently. There is no cancellation mid-broadcast beyond ctx.
func (s *Service) Run(ctx context.Context, job *Job) Summary {
	start := time.Now()
	metrics.BroadcastsStarted.Inc()

	s.log.Info("broadcast started",
		logx.Int64("admin_id", job.AdminID),
		logx.String("kind", string(job.Creative.Kind)),
		logx.Int("total", len(job.Recipients)),
		logx.Int("estimate_s", job.EstimateSeconds))

	// Burst 1: the first chunk goes immediately, each later chunk waits
	// out the pacing window. Nothing sleeps after the final chunk.
	limiter := rate.NewLimiter(rate.Every(s.cfg.Pacing), 1)

	var sum Summary
	sum.Total = len(job.Recipients)

	for _, chunk := range chunkRecipients(job.Recipients, s.cfg.ChunkSize) {
		if err := limiter.Wait(ctx); err != nil {
			// Context gone: count the rest of the audience as failed so the
			// totals still balance.
			sum.Failed = sum.Total - sum.Sent
			break
		}
		sent, failed := s.dispatchChunk(ctx, chunk, job.Creative)
		sum.Sent += sent
		sum.Failed += failed
	}

	sum.Took = time.Since(start)
	fields := []logx.Field{
		logx.Int64("admin_id", job.AdminID),
		logx.Int("total", sum.Total),
		logx.Int("sent", sum.Sent),
		logx.Int("failed", sum.Failed),
		logx.Duration("took", sum.Took),
	}
	if sum.Failed > 0 {
		s.log.Warn("broadcast finished with failures", fields...)
	} else {
		s.log.Info("broadcast finished", fields...)
	}
	return sum
}

// Cancel clears the admin's slot. Cancelling with nothing staged is a
// no-op, not an error.
func (s *Service) Cancel(ctx context.Context, adminID int64) error {
	ok, err := s.users.IsAdmin(ctx, adminID)
	if err != nil {
		return fmt.Errorf("admin check: %w", err)
	}
	if !ok {
		return ErrNotAdmin
	}
	s.staging.Clear(adminID)
	s.log.Debug("broadcast cancelled", logx.Int64("admin_id", adminID))
	return nil
}
