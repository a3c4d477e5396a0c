package storage

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("storage: not found")

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// User mirrors a Telegram account as seen at /start time.
type User struct {
	ID                    int64
	IsBot                 bool
	FirstName             string
	LastName              string
	Username              string
	LanguageCode          string
	IsPremium             bool
	AddedToAttachmentMenu bool
	Role                  string
	MessagesSentCount     int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// UserRef is the projection the audience resolver works with.
type UserRef struct {
	ID        int64
	CreatedAt time.Time
}

// PaymentStatus values follow the payment provider's vocabulary,
// uppercased on the way in.
const (
	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusPending = "PENDING"
	PaymentStatusError   = "ERROR"
)

// Payment methods the provider is known to report. Method is empty when
// the provider sent something unrecognized.
const (
	PaymentMethodCard   = "CARD"
	PaymentMethodSBP    = "SBP"
	PaymentMethodQiwi   = "QIWI"
	PaymentMethodYandex = "YANDEX"
	PaymentMethodPaypal = "PAYPAL"
	PaymentMethodCrypto = "CRYPTO"
)

type Payment struct {
	OrderID   string
	UserID    int64
	Amount    float64
	Status    string
	Method    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats is the aggregate reported to admins by /stats and the daily report.
type Stats struct {
	TotalUsers      int64
	TotalAdmins     int64
	RegisteredToday int64
	PremiumUsers    int64
}
