package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "github.com/aid003/SKUF-BOT/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestUpsertUserKeepsRoleAndCounter(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.UpsertUser(ctx, User{ID: 1, FirstName: "Иван", Role: "admin"}); err != nil {
		t.Fatalf("UpsertUser error: %v", err)
	}
	if err := st.IncrementSentCount(ctx, 1); err != nil {
		t.Fatalf("IncrementSentCount error: %v", err)
	}

	// Re-running /start must refresh the profile without resetting anything.
	if err := st.UpsertUser(ctx, User{ID: 1, FirstName: "Ivan", Username: "ivan"}); err != nil {
		t.Fatalf("second UpsertUser error: %v", err)
	}

	u, err := st.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}
	if u.FirstName != "Ivan" || u.Username != "ivan" {
		t.Fatalf("profile not refreshed: %+v", u)
	}
	if u.Role != "admin" {
		t.Fatalf("Role = %q, want admin", u.Role)
	}
	if u.MessagesSentCount != 1 {
		t.Fatalf("MessagesSentCount = %d, want 1", u.MessagesSentCount)
	}
}

func TestGetUserNotFound(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	if _, err := st.GetUser(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIsAdmin(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.UpsertUser(ctx, User{ID: 10, Role: "admin"}); err != nil {
		t.Fatalf("UpsertUser error: %v", err)
	}
	if err := st.UpsertUser(ctx, User{ID: 11}); err != nil {
		t.Fatalf("UpsertUser error: %v", err)
	}

	tests := []struct {
		name string
		id   int64
		want bool
	}{
		{name: "admin", id: 10, want: true},
		{name: "client", id: 11, want: false},
		{name: "unknown", id: 12, want: false},
	}
	for _, tt := range tests {
		got, err := st.IsAdmin(ctx, tt.id)
		if err != nil {
			t.Fatalf("%s: IsAdmin error: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: IsAdmin = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFindIDsByRoleOrderAndLimit(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 5; i++ {
		u := User{ID: i, Role: "client", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := st.UpsertUser(ctx, u); err != nil {
			t.Fatalf("UpsertUser error: %v", err)
		}
	}
	if err := st.UpsertUser(ctx, User{ID: 99, Role: "admin", CreatedAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("UpsertUser error: %v", err)
	}

	refs, err := st.FindIDsByRole(ctx, "client", 3)
	if err != nil {
		t.Fatalf("FindIDsByRole error: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("len = %d, want 3", len(refs))
	}
	// Newest registrations first; the admin must not appear.
	want := []int64{5, 4, 3}
	for i, ref := range refs {
		if ref.ID != want[i] {
			t.Fatalf("refs[%d].ID = %d, want %d", i, ref.ID, want[i])
		}
	}

	empty, err := st.FindIDsByRole(ctx, "client", 0)
	if err != nil {
		t.Fatalf("FindIDsByRole(limit=0) error: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("limit 0 returned %d refs", len(empty))
	}
}

func TestIncrementSentCountUnknownUser(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	if err := st.IncrementSentCount(context.Background(), 777); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	users := []User{
		{ID: 1, Role: "admin", CreatedAt: now.Add(-48 * time.Hour)},
		{ID: 2, IsPremium: true, CreatedAt: now.Add(-time.Hour)},
		{ID: 3, CreatedAt: now.Add(-30 * time.Minute)},
	}
	for _, u := range users {
		if err := st.UpsertUser(ctx, u); err != nil {
			t.Fatalf("UpsertUser error: %v", err)
		}
	}

	stats, err := st.Stats(ctx, now)
	if err != nil {
		t.Fatalf("Stats error: %v", err)
	}
	if stats.TotalUsers != 3 || stats.TotalAdmins != 1 || stats.RegisteredToday != 2 || stats.PremiumUsers != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestUpsertPayment(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	p := Payment{OrderID: "ord-1", UserID: 1, Amount: 4990, Status: PaymentStatusPending}
	if err := st.UpsertPayment(ctx, p); err != nil {
		t.Fatalf("UpsertPayment error: %v", err)
	}
	p.Status = PaymentStatusSuccess
	p.Method = PaymentMethodCard
	if err := st.UpsertPayment(ctx, p); err != nil {
		t.Fatalf("second UpsertPayment error: %v", err)
	}
}
