// Package telegram adapts gopkg.in/telebot.v4 to the transport.Sender
// port and owns the long-poll lifecycle.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "github.com/aid003/SKUF-BOT/internal/transport"
	logx "github.com/aid003/SKUF-BOT/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	runMu   sync.Mutex
	running bool
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// Bot exposes the underlying client so handlers can be registered on it.
func (a *Adapter) Bot() *tele.Bot { return a.bot }

// Start launches the long-poll loop and stops it once ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return
	}
	a.running = true
	a.runMu.Unlock()

	go func() {
		<-ctx.Done()
		a.Stop()
	}()
	go func() {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
	}()
}

func (a *Adapter) Stop() {
	a.runMu.Lock()
	wasRunning := a.running
	a.running = false
	a.runMu.Unlock()
	if !wasRunning {
		return
	}
	// telebot Stop is expected to be fast; run it async just in case.
	go a.bot.Stop()
}

func (a *Adapter) send(ctx context.Context, to int64, what any, opts *tele.SendOptions) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	if opts == nil {
		opts = &tele.SendOptions{}
	}
	_, err := a.bot.Send(&tele.Chat{ID: to}, what, opts)
	return err
}

func (a *Adapter) SendText(ctx context.Context, to int64, text string, opt *kit.SendOptions) error {
	opts := &tele.SendOptions{}
	if opt != nil {
		opts.ParseMode = opt.ParseMode
		opts.DisableWebPagePreview = opt.DisablePreview
	}
	return a.send(ctx, to, text, opts)
}

func (a *Adapter) SendPhoto(ctx context.Context, to int64, fileID, caption string) error {
	return a.send(ctx, to, &tele.Photo{File: tele.File{FileID: fileID}, Caption: caption}, nil)
}

func (a *Adapter) SendVideo(ctx context.Context, to int64, fileID, caption string) error {
	return a.send(ctx, to, &tele.Video{File: tele.File{FileID: fileID}, Caption: caption}, nil)
}

func (a *Adapter) SendSticker(ctx context.Context, to int64, fileID string) error {
	return a.send(ctx, to, &tele.Sticker{File: tele.File{FileID: fileID}}, nil)
}

func (a *Adapter) SendVoice(ctx context.Context, to int64, fileID string) error {
	return a.send(ctx, to, &tele.Voice{File: tele.File{FileID: fileID}}, nil)
}

func (a *Adapter) SendVideoNote(ctx context.Context, to int64, fileID string) error {
	return a.send(ctx, to, &tele.VideoNote{File: tele.File{FileID: fileID}}, nil)
}
