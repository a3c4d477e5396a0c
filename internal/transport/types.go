// Package transport defines the outbound messaging port the bot's
// services depend on, keeping them independent of the Telegram client.
package transport

import "context"

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

const (
	ParseModeMarkdown   = "Markdown"
	ParseModeMarkdownV2 = "MarkdownV2"
)

// Sender delivers one payload to one numeric recipient. Every call may
// fail independently; callers own the failure policy.
type Sender interface {
	SendText(ctx context.Context, to int64, text string, opt *SendOptions) error
	SendPhoto(ctx context.Context, to int64, fileID, caption string) error
	SendVideo(ctx context.Context, to int64, fileID, caption string) error
	SendSticker(ctx context.Context, to int64, fileID string) error
	SendVoice(ctx context.Context, to int64, fileID string) error
	SendVideoNote(ctx context.Context, to int64, fileID string) error
}
