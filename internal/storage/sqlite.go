// Package storage persists Telegram users and payment records in a local
// SQLite database. It is the bot's only durable state; broadcast progress
// is deliberately not stored here.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "github.com/aid003/SKUF-BOT/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store is the persistence API the rest of the bot depends on.
type Store interface {
	UpsertUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id int64) (User, error)
	IsAdmin(ctx context.Context, id int64) (bool, error)
	FindIDsByRole(ctx context.Context, role string, limit int) ([]UserRef, error)
	IncrementSentCount(ctx context.Context, id int64) error
	Stats(ctx context.Context, now time.Time) (Stats, error)
	UpsertPayment(ctx context.Context, p Payment) error
	Close() error
}

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertUser inserts a new user (role defaults to 'client') or refreshes
// the profile fields of an existing one. Role, sent counter and created_at
// are never touched on update.
func (s *sqliteStore) UpsertUser(ctx context.Context, u User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	role := u.Role
	if role == "" {
		role = "client"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, is_bot, first_name, last_name, username, language_code,
		                   is_premium, added_to_attachment_menu, role, messages_sent_count,
		                   created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,0,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   is_bot                   = excluded.is_bot,
		   first_name               = excluded.first_name,
		   last_name                = excluded.last_name,
		   username                 = excluded.username,
		   language_code            = excluded.language_code,
		   is_premium               = excluded.is_premium,
		   added_to_attachment_menu = excluded.added_to_attachment_menu,
		   updated_at               = excluded.updated_at`,
		u.ID, u.IsBot, u.FirstName, nullStr(u.LastName), nullStr(u.Username), nullStr(u.LanguageCode),
		u.IsPremium, u.AddedToAttachmentMenu, role,
		u.CreatedAt.UnixMilli(), now.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) GetUser(ctx context.Context, id int64) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, is_bot, first_name, last_name, username, language_code,
		        is_premium, added_to_attachment_menu, role, messages_sent_count,
		        created_at, updated_at
		 FROM users WHERE user_id = ?`, id)

	var (
		u                    User
		last, uname, lang    sql.NullString
		createdMS, updatedMS int64
	)
	err := row.Scan(&u.ID, &u.IsBot, &u.FirstName, &last, &uname, &lang,
		&u.IsPremium, &u.AddedToAttachmentMenu, &u.Role, &u.MessagesSentCount,
		&createdMS, &updatedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.LastName = last.String
	u.Username = uname.String
	u.LanguageCode = lang.String
	u.CreatedAt = time.UnixMilli(createdMS).UTC()
	u.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	return u, nil
}

// IsAdmin reports whether the user exists and carries the admin role.
// An unknown user is simply not an admin, not an error.
func (s *sqliteStore) IsAdmin(ctx context.Context, id int64) (bool, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT role FROM users WHERE user_id = ?`, id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return role == "admin", nil
}

// FindIDsByRole lists user ids with the given role, newest registrations
// first, capped at limit.
func (s *sqliteStore) FindIDsByRole(ctx context.Context, role string, limit int) ([]UserRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, created_at FROM users
		 WHERE role = ? ORDER BY created_at DESC, user_id DESC LIMIT ?`,
		role, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserRef
	for rows.Next() {
		var (
			ref UserRef
			ms  int64
		)
		if err := rows.Scan(&ref.ID, &ms); err != nil {
			return nil, err
		}
		ref.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (s *sqliteStore) IncrementSentCount(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET messages_sent_count = messages_sent_count + 1, updated_at = ?
		 WHERE user_id = ?`, time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var st Stats
	dayStart := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(role = 'admin'), 0),
		       COALESCE(SUM(created_at >= ?), 0),
		       COALESCE(SUM(is_premium), 0)
		FROM users`, dayStart.UnixMilli()).
		Scan(&st.TotalUsers, &st.TotalAdmins, &st.RegisteredToday, &st.PremiumUsers)
	return st, err
}

func (s *sqliteStore) UpsertPayment(ctx context.Context, p Payment) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments(order_id, user_id, amount, status, payment_method, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(order_id) DO UPDATE SET
		   status         = excluded.status,
		   payment_method = excluded.payment_method,
		   updated_at     = excluded.updated_at`,
		p.OrderID, p.UserID, p.Amount, p.Status, nullStr(p.Method),
		p.CreatedAt.UnixMilli(), now.UnixMilli(),
	)
	return err
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
