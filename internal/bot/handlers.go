// Package bot wires the Telegram command, media and callback handlers:
// user registration, the payment/announcement buttons, admin stats and
// the broadcast confirm/cancel flow.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/aid003/SKUF-BOT/internal/announce"
	"github.com/aid003/SKUF-BOT/internal/broadcast"
	"github.com/aid003/SKUF-BOT/internal/config"
	"github.com/aid003/SKUF-BOT/internal/report"
	"github.com/aid003/SKUF-BOT/internal/storage"
	logx "github.com/aid003/SKUF-BOT/pkg/logx"
	"github.com/aid003/SKUF-BOT/pkg/tgmd"
)

const handlerTimeout = 30 * time.Second

type Handlers struct {
	store    storage.Store
	bcast    *broadcast.Service
	ann      *announce.Client
	payments config.PaymentsConfig
	log      logx.Logger

	welcomeMenu *tele.ReplyMarkup
	confirmMenu *tele.ReplyMarkup
}

func New(store storage.Store, bcast *broadcast.Service, ann *announce.Client, payments config.PaymentsConfig, log logx.Logger) *Handlers {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handlers{store: store, bcast: bcast, ann: ann, payments: payments, log: log}
}

// Register attaches every handler to the bot.
func (h *Handlers) Register(b *tele.Bot) {
	h.welcomeMenu = &tele.ReplyMarkup{}
	btnPay := h.welcomeMenu.Data("💳 Оплатить", "pay")
	btnAnnounce := h.welcomeMenu.Data("📢 Прислать анонс ближайшей программы", "send_announcement")
	h.welcomeMenu.Inline(
		h.welcomeMenu.Row(btnPay),
		h.welcomeMenu.Row(btnAnnounce),
	)

	h.confirmMenu = &tele.ReplyMarkup{}
	btnYes := h.confirmMenu.Data("Да", "confirm_broadcast")
	btnNo := h.confirmMenu.Data("Нет", "cancel_broadcast")
	h.confirmMenu.Inline(h.confirmMenu.Row(btnYes, btnNo))

	b.Handle("/start", h.onStart)
	b.Handle("/stats", h.onStats)

	b.Handle(&btnPay, h.onPay)
	b.Handle(&btnAnnounce, h.onAnnouncement)
	b.Handle(&btnYes, h.onConfirmBroadcast)
	b.Handle(&btnNo, h.onCancelBroadcast)

	b.Handle(tele.OnPhoto, h.onPhoto)
	b.Handle(tele.OnVideo, h.onVideo)
	b.Handle(tele.OnText, h.onText)
	b.Handle(tele.OnSticker, h.onSticker)
	b.Handle(tele.OnVoice, h.onVoice)
	b.Handle(tele.OnVideoNote, h.onVideoNote)
}

func handlerCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), handlerTimeout)
}

// ---- registration & welcome ----

func (h *Handlers) onStart(c tele.Context) error {
	from := c.Sender()
	if from == nil {
		return nil
	}
	ctx, cancel := handlerCtx()
	defer cancel()

	u := storage.User{
		ID:                    from.ID,
		IsBot:                 from.IsBot,
		FirstName:             from.FirstName,
		LastName:              from.LastName,
		Username:              from.Username,
		LanguageCode:          from.LanguageCode,
		IsPremium:             from.IsPremium,
		AddedToAttachmentMenu: from.AddedToMenu,
	}
	if err := h.store.UpsertUser(ctx, u); err != nil {
		h.log.Error("user registration failed", logx.Int64("user_id", from.ID), logx.Err(err))
		return c.Reply("Произошла ошибка при регистрации. Попробуйте позже!")
	}
	h.log.Info("user started the bot",
		logx.Int64("user_id", from.ID), logx.String("username", from.Username))

	name := from.FirstName
	if name == "" {
		name = "Гость"
	}
	msg := fmt.Sprintf(
		"*%s*, на связи *Скуфы маркетинга*👋\n\n"+
			"_Благодарю тебя за подписку, теперь ты не пропустишь самое важное\\!_\n\n"+
			"Этот бот создан для оповещения о наших мероприятиях и активностях, которые помогают селлерам выходить на новый уровень\\.\n\n"+
			"Подобные мероприятия обычно проходят не чаще 2х раз в месяц\\.\n\n"+
			"Для оплаты участия в мероприятии, перейдите по кнопке *\"Оплатить\"*\\.\n\n"+
			"Если тебе интересно узнать о ближайшем мероприятии, нажмите на кнопку *\"Прислать анонс ближайшей программы\"*",
		tgmd.Escape(name),
	)
	return c.Reply(msg, &tele.SendOptions{ParseMode: tele.ModeMarkdownV2}, h.welcomeMenu)
}

func (h *Handlers) onPay(c tele.Context) error {
	defer func() { _ = c.Respond() }()
	from := c.Sender()
	if from == nil {
		return nil
	}
	link := h.payments.PaymentURL
	if link == "" {
		return c.Send("Оплата временно недоступна, попробуйте позже.")
	}
	h.log.Info("pay button pressed", logx.Int64("user_id", from.ID))
	msg := fmt.Sprintf("Для оплаты перейдите по ссылке: [Оплатить](%s)", link)
	return c.Send(msg, &tele.SendOptions{ParseMode: tele.ModeMarkdownV2})
}

func (h *Handlers) onAnnouncement(c tele.Context) error {
	defer func() { _ = c.Respond() }()
	if c.Sender() == nil {
		return nil
	}
	ctx, cancel := handlerCtx()
	defer cancel()

	list, err := h.ann.Fetch(ctx)
	if err != nil {
		h.log.Error("announcements fetch failed", logx.Err(err))
		return c.Send("❌ Не удалось получить список мероприятий.")
	}
	if len(list) == 0 {
		return c.Send("❌ Нет доступных мероприятий.")
	}
	return c.Send(announce.Render(list), &tele.SendOptions{ParseMode: tele.ModeMarkdownV2})
}

// ---- admin stats ----

// onStats answers admins only; everyone else gets silence, so the
// command does not advertise itself.
func (h *Handlers) onStats(c tele.Context) error {
	from := c.Sender()
	if from == nil {
		return nil
	}
	ctx, cancel := handlerCtx()
	defer cancel()

	ok, err := h.store.IsAdmin(ctx, from.ID)
	if err != nil {
		h.log.Error("stats admin check failed", logx.Err(err))
		return nil
	}
	if !ok {
		return nil
	}

	stats, err := h.store.Stats(ctx, time.Now())
	if err != nil {
		h.log.Error("stats query failed", logx.Err(err))
		return nil
	}
	return c.Reply(report.FormatStats(stats), &tele.SendOptions{ParseMode: tele.ModeMarkdown})
}

// ---- creative staging ----

var kindLabels = map[broadcast.Kind]string{
	broadcast.KindPhoto:     "фото",
	broadcast.KindVideo:     "видео",
	broadcast.KindText:      "текст",
	broadcast.KindSticker:   "стикер",
	broadcast.KindVoice:     "голосовое сообщение",
	broadcast.KindVideoNote: "кружочек",
}

// stageCreative parks the creative and asks for confirmation. Submissions
// from non-admins are ignored without a reply, as the original bot did.
func (h *Handlers) stageCreative(c tele.Context, creative broadcast.Creative) error {
	from := c.Sender()
	if from == nil {
		return nil
	}
	ctx, cancel := handlerCtx()
	defer cancel()

	if err := h.bcast.Stage(ctx, from.ID, creative); err != nil {
		if errors.Is(err, broadcast.ErrNotAdmin) {
			return nil
		}
		h.log.Warn("creative rejected", logx.Int64("admin_id", from.ID), logx.Err(err))
		return nil
	}
	msg := fmt.Sprintf("Креатив (%s) загружен. Отправить его всем пользователям?", kindLabels[creative.Kind])
	return c.Reply(msg, h.confirmMenu)
}

func (h *Handlers) onPhoto(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Photo == nil {
		return nil
	}
	return h.stageCreative(c, broadcast.Creative{
		Kind:    broadcast.KindPhoto,
		FileID:  m.Photo.FileID,
		Caption: m.Caption,
	})
}

func (h *Handlers) onVideo(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Video == nil {
		return nil
	}
	return h.stageCreative(c, broadcast.Creative{
		Kind:    broadcast.KindVideo,
		FileID:  m.Video.FileID,
		Caption: m.Caption,
	})
}

func (h *Handlers) onText(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Text == "" {
		return nil
	}
	return h.stageCreative(c, broadcast.Creative{Kind: broadcast.KindText, Text: m.Text})
}

func (h *Handlers) onSticker(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Sticker == nil {
		return nil
	}
	return h.stageCreative(c, broadcast.Creative{Kind: broadcast.KindSticker, FileID: m.Sticker.FileID})
}

func (h *Handlers) onVoice(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Voice == nil {
		return nil
	}
	return h.stageCreative(c, broadcast.Creative{Kind: broadcast.KindVoice, FileID: m.Voice.FileID})
}

func (h *Handlers) onVideoNote(c tele.Context) error {
	m := c.Message()
	if m == nil || m.VideoNote == nil {
		return nil
	}
	return h.stageCreative(c, broadcast.Creative{Kind: broadcast.KindVideoNote, FileID: m.VideoNote.FileID})
}

// ---- confirm / cancel ----

func (h *Handlers) onConfirmBroadcast(c tele.Context) error {
	defer func() { _ = c.Respond() }()
	from := c.Sender()
	if from == nil {
		return c.Send("Неизвестный отправитель.")
	}
	ctx, cancel := handlerCtx()
	defer cancel()

	job, err := h.bcast.Begin(ctx, from.ID)
	switch {
	case errors.Is(err, broadcast.ErrNotAdmin):
		return c.Send("У вас нет прав на рассылку.")
	case errors.Is(err, broadcast.ErrNothingStaged):
		return c.Send("Нет креатива для рассылки (возможно, уже отправлено или сброшено).")
	case errors.Is(err, broadcast.ErrNoRecipients):
		return c.Send("Нет пользователей для рассылки.")
	case err != nil:
		h.log.Error("broadcast could not start", logx.Int64("admin_id", from.ID), logx.Err(err))
		return c.Send("Не удалось запустить рассылку. Попробуйте позже.")
	}

	preflight := fmt.Sprintf(
		"Будет отправлено *%d* пользователям.\n"+
			"Примерное время выполнения ~ *%d* секунд.\n"+
			"Начинаем рассылку...",
		len(job.Recipients), job.EstimateSeconds)
	if err := c.Send(preflight, &tele.SendOptions{ParseMode: tele.ModeMarkdown}); err != nil {
		h.log.Warn("preflight notice failed", logx.Err(err))
	}

	// The broadcast itself is not bounded by the handler timeout; it runs
	// to completion once confirmed.
	sum := h.bcast.Run(context.Background(), job)

	took := int(sum.Took.Round(time.Second).Seconds())
	if sum.Failed == 0 {
		msg := fmt.Sprintf(
			"Рассылка успешно завершена всем *%d* пользователям!\nЗатрачено: ~%d сек.",
			sum.Sent, took)
		return c.Send(msg, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	}
	msg := fmt.Sprintf(
		"Рассылка завершена. Всего: %d, Успешно: %d, Ошибок: %d.\nЗатрачено ~%d сек.",
		sum.Total, sum.Sent, sum.Failed, took)
	return c.Send(msg)
}

func (h *Handlers) onCancelBroadcast(c tele.Context) error {
	defer func() { _ = c.Respond() }()
	from := c.Sender()
	if from == nil {
		return nil
	}
	ctx, cancel := handlerCtx()
	defer cancel()

	if err := h.bcast.Cancel(ctx, from.ID); err != nil {
		if errors.Is(err, broadcast.ErrNotAdmin) {
			return c.Send("У вас нет прав на рассылку.")
		}
		h.log.Error("cancel failed", logx.Int64("admin_id", from.ID), logx.Err(err))
		return nil
	}
	return c.Send("Рассылка отменена.")
}
