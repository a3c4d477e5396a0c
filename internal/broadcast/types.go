package broadcast

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindPhoto     Kind = "photo"
	KindVideo     Kind = "video"
	KindText      Kind = "text"
	KindSticker   Kind = "sticker"
	KindVoice     Kind = "voice"
	KindVideoNote Kind = "video_note"
)

// Creative is the single payload an admin stages for a broadcast.
// Exactly one of FileID/Text is populated, consistent with Kind.
type Creative struct {
	Kind    Kind
	FileID  string // photo, video, sticker, voice, video_note
	Caption string // photo and video only
	Text    string // text only
}

func (c Creative) Validate() error {
	switch c.Kind {
	case KindText:
		if c.Text == "" {
			return errors.New("text creative has no body")
		}
		if c.FileID != "" || c.Caption != "" {
			return errors.New("text creative carries media fields")
		}
	case KindPhoto, KindVideo:
		if c.FileID == "" {
			return fmt.Errorf("%s creative has no file id", c.Kind)
		}
		if c.Text != "" {
			return fmt.Errorf("%s creative carries body text", c.Kind)
		}
	case KindSticker, KindVoice, KindVideoNote:
		if c.FileID == "" {
			return fmt.Errorf("%s creative has no file id", c.Kind)
		}
		if c.Text != "" || c.Caption != "" {
			return fmt.Errorf("%s creative carries text fields", c.Kind)
		}
	default:
		return fmt.Errorf("unknown creative kind %q", c.Kind)
	}
	return nil
}

// Recipient is one resolved audience member.
type Recipient struct {
	ID   int64
	Role string
}

type Config struct {
	// Role the audience is selected by.
	Role string
	// Limit caps the audience size.
	Limit int
	// ChunkSize recipients are dispatched concurrently per pacing window.
	ChunkSize int
	// Pacing is the minimum spacing between consecutive chunks.
	Pacing time.Duration
	// TextLimit is the per-message length ceiling in runes.
	TextLimit int
}

func (c Config) withDefaults() Config {
	if c.Role == "" {
		c.Role = "client"
	}
	if c.Limit <= 0 {
		c.Limit = 10000
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 30
	}
	if c.Pacing <= 0 {
		c.Pacing = time.Second
	}
	if c.TextLimit <= 0 {
		c.TextLimit = 4096
	}
	return c
}

// Job is the in-memory aggregate created at confirm time. It lives for
// one broadcast invocation only; a crash mid-run loses its progress.
type Job struct {
	AdminID    int64
	Creative   Creative
	Recipients []Recipient
	// EstimateSeconds is the advisory pre-flight estimate reported to the
	// admin before dispatch begins. It never gates execution.
	EstimateSeconds int
}

// Summary aggregates the outcome of one finished broadcast.
type Summary struct {
	Total  int
	Sent   int
	Failed int
	Took   time.Duration
}
