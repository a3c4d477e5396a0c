// Package tgmd provides helpers for Telegram MarkdownV2 text.
package tgmd

import "strings"

// escaper covers every character MarkdownV2 requires to be escaped.
var escaper = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]",
	"(", "\\(", ")", "\\)", "~", "\\~", "`", "\\`",
	">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}",
	".", "\\.", "!", "\\!",
)

// Escape escapes text so it is safe to embed in a MarkdownV2 message.
func Escape(s string) string { return escaper.Replace(s) }
