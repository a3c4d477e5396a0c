// Package announce fetches upcoming event announcements from the content
// CMS and renders them for Telegram.
package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	logx "github.com/aid003/SKUF-BOT/pkg/logx"
	"github.com/aid003/SKUF-BOT/pkg/tgmd"
)

type Announcement struct {
	Title   string
	Date    time.Time
	Content string
}

type Client struct {
	base string
	http *http.Client
	log  logx.Logger
}

func NewClient(baseURL string, timeout time.Duration, log logx.Logger) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

type listResponse struct {
	Data []item `json:"data"`
}

type item struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	Content string `json:"content"`
}

// Fetch returns upcoming announcements sorted by date ascending.
// Malformed items are logged and skipped rather than failing the list.
func (c *Client) Fetch(ctx context.Context) ([]Announcement, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/announcements", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("announcements API: %s", resp.Status)
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("announcements API: decode: %w", err)
	}

	out := make([]Announcement, 0, len(body.Data))
	for _, it := range body.Data {
		if it.Title == "" || it.Date == "" {
			c.log.Warn("skipping malformed announcement", logx.String("title", it.Title))
			continue
		}
		d, err := parseDate(it.Date)
		if err != nil {
			c.log.Warn("skipping announcement with bad date",
				logx.String("title", it.Title), logx.String("date", it.Date))
			continue
		}
		out = append(out, Announcement{
			Title:   it.Title,
			Date:    d,
			Content: strings.TrimSpace(it.Content),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z07:00", "2006-01-02"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

const dateFormat = "02.01.2006 15:04"

// Render formats the list as a MarkdownV2 message: the next event first,
// the rest under a separate heading. Returns "" for an empty list.
func Render(list []Announcement) string {
	if len(list) == 0 {
		return ""
	}
	var b strings.Builder

	next := list[0]
	b.WriteString("📅 *Ближайшее мероприятие*\n\n")
	fmt.Fprintf(&b, "👉 *Тема:* %s\n", tgmd.Escape(next.Title))
	fmt.Fprintf(&b, "⏱️ *Дата:* %s\n", tgmd.Escape(next.Date.Format(dateFormat)))
	if next.Content != "" {
		fmt.Fprintf(&b, "📢 %s\n", tgmd.Escape(next.Content))
	}

	if len(list) > 1 {
		b.WriteString("\n\n💼 *Другие мероприятия*\n")
		for _, ev := range list[1:] {
			fmt.Fprintf(&b, "\n👉 *Тема:* %s\n", tgmd.Escape(ev.Title))
			fmt.Fprintf(&b, "⏱️ *Дата:* %s\n", tgmd.Escape(ev.Date.Format(dateFormat)))
			if ev.Content != "" {
				fmt.Fprintf(&b, "📢 %s\n", tgmd.Escape(ev.Content))
			}
		}
	}
	return b.String()
}
