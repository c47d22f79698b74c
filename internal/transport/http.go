package transport

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/avvvet/octotalk/internal/handlers"
	"github.com/avvvet/octotalk/internal/memory"
	"github.com/avvvet/octotalk/internal/models"
	"github.com/avvvet/octotalk/internal/observability"
)

const (
	signatureHeader = "X-Signature-256"
	signaturePrefix = "sha256="
	maxRequestBytes = 1 << 20
)

// Bot is what the transports hand inbound messages to.
type Bot interface {
	HandleMessage(ctx context.Context, msg *models.InboundMessage) (*models.OutboundReply, error)
	History(ctx context.Context, conversationID string) ([]memory.Message, error)
	FormattedHistory(ctx context.Context, conversationID string) (string, error)
	ConversationExists(ctx context.Context, conversationID string) (bool, error)
	ResetConversation(ctx context.Context, conversationID string) error
}

// Pinger reports whether conversation storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPConfig struct {
	Port          string
	AppSecret     string
	AllowedOrigin string
}

// HTTPServer receives chat webhook deliveries.
type HTTPServer struct {
	bot    Bot
	store  Pinger
	secret []byte
	router chi.Router
	server *http.Server
	log    *zap.Logger
}

func NewHTTPServer(cfg HTTPConfig, bot Bot, store Pinger, log *zap.Logger) *HTTPServer {
	s := &HTTPServer{
		bot:   bot,
		store: store,
		log:   log,
	}
	if cfg.AppSecret != "" {
		s.secret = []byte(cfg.AppSecret)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.AllowedOrigin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{cfg.AllowedOrigin},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", signatureHeader},
			MaxAge:         300,
		}))
	}

	r.Post("/api/messages", s.handleMessage)
	r.Get("/api/conversations/{id}/history", s.handleHistory)
	r.Delete("/api/conversations/{id}", s.handleReset)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	s.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info("HTTP server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, models.ErrorParseError, "could not read request body")
		return
	}

	if s.secret != nil {
		if err := verifySignature(s.secret, r.Header.Get(signatureHeader), body); err != nil {
			s.log.Warn("Rejected webhook delivery",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Error(err),
			)
			s.writeError(w, http.StatusUnauthorized, models.ErrorUnauthorized, "invalid signature")
			return
		}
	}

	var msg models.InboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.writeError(w, http.StatusBadRequest, models.ErrorParseError, "invalid request format")
		return
	}
	observability.MessagesTotal.WithLabelValues("http", msg.Type).Inc()

	reply, err := s.bot.HandleMessage(r.Context(), &msg)
	if err != nil {
		if errors.Is(err, handlers.ErrMissingConversationID) {
			s.writeError(w, http.StatusBadRequest, models.ErrorInvalid, err.Error())
			return
		}
		s.log.Error("Failed to handle message",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, models.ErrorInternal, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, reply)
}

// handleHistory serves the transcript as JSON, or as plain "User:"/"Bot:"
// lines with ?format=text.
func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	ctx := r.Context()

	exists, err := s.bot.ConversationExists(ctx, conversationID)
	if err != nil {
		s.internalError(w, "Failed to check conversation", conversationID, err)
		return
	}
	if !exists {
		s.writeError(w, http.StatusNotFound, models.ErrorNotFound, "conversation not found")
		return
	}

	if r.URL.Query().Get("format") == "text" {
		text, err := s.bot.FormattedHistory(ctx, conversationID)
		if err != nil {
			s.internalError(w, "Failed to format history", conversationID, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, text)
		return
	}

	messages, err := s.bot.History(ctx, conversationID)
	if err != nil {
		s.internalError(w, "Failed to load history", conversationID, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"messages":        messages,
	})
}

func (s *HTTPServer) handleReset(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")

	if err := s.bot.ResetConversation(r.Context(), conversationID); err != nil {
		s.internalError(w, "Failed to reset conversation", conversationID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) internalError(w http.ResponseWriter, msg, conversationID string, err error) {
	s.log.Error(msg,
		zap.String("conversation_id", conversationID),
		zap.Error(err),
	)
	s.writeError(w, http.StatusInternalServerError, models.ErrorInternal, "internal error")
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.log.Warn("Health check failed", zap.Error(err))
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Failed to write response", zap.Error(err))
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, models.ErrorReply{ErrorCode: code, ErrorMessage: message})
}

// verifySignature checks a "sha256=<hex>" HMAC-SHA256 of body.
func verifySignature(secret []byte, header string, body []byte) error {
	if header == "" {
		return fmt.Errorf("missing %s header", signatureHeader)
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return fmt.Errorf("%s must start with %q", signatureHeader, signaturePrefix)
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return fmt.Errorf("invalid hex in %s: %w", signatureHeader, err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return errors.New("signature mismatch")
	}
	return nil
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
