package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aid003/SKUF-BOT/internal/storage"
	logx "github.com/aid003/SKUF-BOT/pkg/logx"
)

const maxBodyBytes = 64 << 10

type paymentNotice struct {
	OrderID string `json:"order_id"`
	Amount  any    `json:"amount"`
	Status  string `json:"status"`
	UserID  any    `json:"user_id"`
	Method  string `json:"payment_method"`
}

// mapPaymentMethod translates the provider's method codes into the stored
// enum. Unknown codes are kept as an empty method rather than rejected.
func (s *Server) mapPaymentMethod(code string) string {
	if code == "" {
		return ""
	}
	switch strings.ToLower(code) {
	case "ac", "ackz", "acf":
		return storage.PaymentMethodCard
	case "sbp":
		return storage.PaymentMethodSBP
	case "qw", "qiwi":
		return storage.PaymentMethodQiwi
	case "pc", "yandex":
		return storage.PaymentMethodYandex
	case "paypal":
		return storage.PaymentMethodPaypal
	case "crypto":
		return storage.PaymentMethodCrypto
	default:
		s.log.Warn("unknown payment method", logx.String("method", code))
		return ""
	}
}

func parseAmount(v any) (float64, error) {
	switch a := v.(type) {
	case string:
		return strconv.ParseFloat(a, 64)
	case float64:
		return a, nil
	default:
		return 0, fmt.Errorf("unsupported amount type %T", v)
	}
}

// userIDFrom accepts only a digit string, matching what the payment page
// passes through in the custom field.
func userIDFrom(v any) (int64, bool) {
	str, ok := v.(string)
	if !ok || str == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(str, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) handlePayment(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid body")
		return
	}

	if !verifySignature(body, s.cfg.SecretKey, c.GetHeader("Sign")) {
		s.log.Warn("payment webhook signature mismatch")
		c.String(http.StatusBadRequest, "Invalid signature")
		return
	}

	var req paymentNotice
	if err := json.Unmarshal(body, &req); err != nil {
		c.String(http.StatusBadRequest, "Invalid request data")
		return
	}
	if req.OrderID == "" || req.Amount == nil || req.Status == "" || req.UserID == nil {
		s.log.Warn("payment webhook missing required fields")
		c.String(http.StatusBadRequest, "Invalid request data")
		return
	}

	userID, ok := userIDFrom(req.UserID)
	if !ok {
		s.log.Warn("payment webhook bad user_id", logx.Any("user_id", req.UserID))
		c.String(http.StatusBadRequest, "Invalid user_id")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil || amount <= 0 {
		s.log.Error("payment webhook bad amount", logx.Any("amount", req.Amount), logx.Err(err))
		c.String(http.StatusBadRequest, "Invalid amount format")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("payment for unknown user", logx.Int64("user_id", userID))
			c.String(http.StatusNotFound, "User not found")
			return
		}
		s.log.Error("payment user lookup failed", logx.Int64("user_id", userID), logx.Err(err))
		c.String(http.StatusInternalServerError, "Database error")
		return
	}

	status := strings.ToUpper(req.Status)
	p := storage.Payment{
		OrderID: req.OrderID,
		UserID:  userID,
		Amount:  amount,
		Status:  status,
		Method:  s.mapPaymentMethod(req.Method),
	}
	if err := s.store.UpsertPayment(ctx, p); err != nil {
		s.log.Error("payment upsert failed", logx.String("order_id", req.OrderID), logx.Err(err))
		c.String(http.StatusInternalServerError, "Database error")
		return
	}
	s.log.Info("payment recorded",
		logx.String("order_id", req.OrderID),
		logx.Int64("user_id", userID),
		logx.String("status", status))

	// The provider only needs the 200; a failed user notification must not
	// make it retry the whole webhook.
	s.notify(ctx, userID, status, amount)

	c.String(http.StatusOK, "OK")
}

func (s *Server) notify(ctx context.Context, userID int64, status string, amount float64) {
	var msg string
	switch status {
	case storage.PaymentStatusSuccess:
		msg = fmt.Sprintf("✅ Оплата на сумму %s RUB успешно прошла!\n\nСпасибо, что вы с нами.", formatAmount(amount))
	case storage.PaymentStatusPending:
		msg = fmt.Sprintf("⌛ Ваша оплата на сумму %s RUB обрабатывается. Пожалуйста, дождитесь подтверждения!", formatAmount(amount))
	default:
		msg = "❌ Ошибка оплаты. Попробуйте снова."
	}
	if err := s.sender.SendText(ctx, userID, msg, nil); err != nil {
		s.log.Warn("payment notification failed", logx.Int64("user_id", userID), logx.Err(err))
		return
	}
	s.log.Info("payment notification sent", logx.Int64("user_id", userID), logx.String("status", status))
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
