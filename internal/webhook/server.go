// Package webhook runs the HTTP surface of the bot: the payment provider
// callback, a health probe and the Prometheus scrape endpoint.
package webhook

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aid003/SKUF-BOT/internal/config"
	"github.com/aid003/SKUF-BOT/internal/metrics"
	"github.com/aid003/SKUF-BOT/internal/storage"
	"github.com/aid003/SKUF-BOT/internal/transport"
	logx "github.com/aid003/SKUF-BOT/pkg/logx"
)

type Server struct {
	cfg    config.WebhookConfig
	store  storage.Store
	sender transport.Sender
	log    logx.Logger
	srv    *http.Server
}

func New(cfg config.WebhookConfig, store storage.Store, sender transport.Sender, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{cfg: cfg, store: store, sender: sender, log: log}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.access())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.POST("/webhook/payment", s.handlePayment)
	return r
}

// Start serves until Shutdown is called. It never returns
// http.ErrServerClosed.
func (s *Server) Start() error {
	s.log.Info("webhook server listening", logx.String("addr", s.cfg.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) access() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.Request.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()

		lat := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		metrics.WebhookRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
		metrics.WebhookRequestDuration.Observe(lat.Seconds())

		s.log.Info("http access",
			logx.String("rid", rid),
			logx.String("method", c.Request.Method),
			logx.String("path", path),
			logx.Int("status", status),
			logx.Duration("duration", lat),
			logx.String("client_ip", c.ClientIP()),
		)
	}
}
