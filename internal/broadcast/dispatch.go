package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aid003/SKUF-BOT/internal/metrics"
	logx "github.com/aid003/SKUF-BOT/pkg/logx"
)

// dispatchChunk delivers the creative to every recipient of one chunk
// concurrently and joins before returning. A recipient's failure is
// logged, counted and isolated; it never affects the rest of the chunk.
func (s *Service) dispatchChunk(ctx context.Context, chunk []Recipient, c Creative) (sent, failed int) {
	start := time.Now()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	wg.Add(len(chunk))
	for _, r := range chunk {
		go func(r Recipient) {
			defer wg.Done()
			if err := s.deliver(ctx, r.ID, c); err != nil {
				s.log.Warn("broadcast send failed",
					logx.Int64("recipient_id", r.ID), logx.Err(err))
				metrics.BroadcastFailed.Inc()
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			// The message is out; a counter glitch must not turn a delivered
			// broadcast into a reported failure.
			if err := s.users.IncrementSentCount(ctx, r.ID); err != nil {
				s.log.Warn("sent-counter update failed after delivery",
					logx.Int64("recipient_id", r.ID), logx.Err(err))
				metrics.BroadcastCounterErrors.Inc()
			}

			metrics.BroadcastSent.Inc()
			mu.Lock()
			sent++
			mu.Unlock()
		}(r)
	}
	wg.Wait()

	metrics.BroadcastChunkDuration.Observe(time.Since(start).Seconds())
	return sent, failed
}

// deliver sends the creative to one recipient, picking the transport
// operation by kind. Long texts go out as successive fixed-width
// segments, in order.
func (s *Service) deliver(ctx context.Context, to int64, c Creative) error {
	switch c.Kind {
	case KindPhoto:
		return s.sender.SendPhoto(ctx, to, c.FileID, c.Caption)
	case KindVideo:
		return s.sender.SendVideo(ctx, to, c.FileID, c.Caption)
	case KindText:
		if utf8.RuneCountInString(c.Text) <= s.cfg.TextLimit {
			return s.sender.SendText(ctx, to, c.Text, nil)
		}
		for _, part := range SplitText(c.Text, s.cfg.TextLimit) {
			if err := s.sender.SendText(ctx, to, part, nil); err != nil {
				return err
			}
		}
		return nil
	case KindSticker:
		return s.sender.SendSticker(ctx, to, c.FileID)
	case KindVoice:
		return s.sender.SendVoice(ctx, to, c.FileID)
	case KindVideoNote:
		return s.sender.SendVideoNote(ctx, to, c.FileID)
	default:
		return fmt.Errorf("unknown creative kind %q", c.Kind)
	}
}
