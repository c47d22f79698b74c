package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/avvvet/octotalk/internal/handlers"
	"github.com/avvvet/octotalk/internal/memory"
	"github.com/avvvet/octotalk/internal/models"
)

type fakeBot struct {
	received  []models.InboundMessage
	err       error
	history   []memory.Message
	formatted string
	missing   bool
	reset     []string
}

func (f *fakeBot) HandleMessage(_ context.Context, msg *models.InboundMessage) (*models.OutboundReply, error) {
	f.received = append(f.received, *msg)
	if f.err != nil {
		return nil, f.err
	}
	if msg.ConversationID == "" {
		return nil, handlers.ErrMissingConversationID
	}
	return &models.OutboundReply{
		ID:             "reply-1",
		ConversationID: msg.ConversationID,
		Messages:       []models.Message{{Text: "Homing Printer"}},
		EndOfDialog:    true,
	}, nil
}

func (f *fakeBot) History(_ context.Context, _ string) ([]memory.Message, error) {
	return f.history, f.err
}

func (f *fakeBot) FormattedHistory(_ context.Context, _ string) (string, error) {
	return f.formatted, f.err
}

func (f *fakeBot) ConversationExists(_ context.Context, _ string) (bool, error) {
	return !f.missing, f.err
}

func (f *fakeBot) ResetConversation(_ context.Context, conversationID string) error {
	f.reset = append(f.reset, conversationID)
	return f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(secret string, bot *fakeBot, store Pinger) http.Handler {
	return NewHTTPServer(HTTPConfig{Port: "0", AppSecret: secret}, bot, store, zap.NewNop()).Handler()
}

func post(t *testing.T, h http.Handler, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorReply {
	t.Helper()
	var reply models.ErrorReply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return reply
}

const homeMessage = `{"type":"message","conversation_id":"conv-1","text":"home the printer"}`

func TestPostMessage_Unsigned(t *testing.T) {
	bot := &fakeBot{}
	rec := post(t, newTestServer("", bot, fakePinger{}), homeMessage, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var reply models.OutboundReply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("failed to decode reply: %v", err)
	}
	if reply.ConversationID != "conv-1" || !reply.EndOfDialog || len(reply.Messages) != 1 {
		t.Errorf("unexpected reply %+v", reply)
	}
	if len(bot.received) != 1 || bot.received[0].Text != "home the printer" {
		t.Errorf("expected message passed to bot, got %+v", bot.received)
	}
}

func TestPostMessage_Signature(t *testing.T) {
	secret := "app-secret"

	tests := []struct {
		name      string
		signature string
		status    int
	}{
		{"valid", Sign([]byte(secret), []byte(homeMessage)), http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong secret", Sign([]byte("other"), []byte(homeMessage)), http.StatusUnauthorized},
		{"no prefix", strings.TrimPrefix(Sign([]byte(secret), []byte(homeMessage)), signaturePrefix), http.StatusUnauthorized},
		{"bad hex", "sha256=zz", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &fakeBot{}
			rec := post(t, newTestServer(secret, bot, fakePinger{}), homeMessage, tt.signature)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if tt.status == http.StatusUnauthorized {
				if code := decodeError(t, rec).ErrorCode; code != models.ErrorUnauthorized {
					t.Errorf("expected %s, got %s", models.ErrorUnauthorized, code)
				}
				if len(bot.received) != 0 {
					t.Error("expected rejected delivery not to reach the bot")
				}
			}
		})
	}
}

func TestPostMessage_BadRequests(t *testing.T) {
	h := newTestServer("", &fakeBot{}, fakePinger{})

	rec := post(t, h, `{not json`, "")
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).ErrorCode != models.ErrorParseError {
		t.Errorf("expected parse error, got %d %s", rec.Code, rec.Body.String())
	}

	rec = post(t, h, `{"type":"message","text":"hi"}`, "")
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).ErrorCode != models.ErrorInvalid {
		t.Errorf("expected invalid request, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestPostMessage_InternalError(t *testing.T) {
	rec := post(t, newTestServer("", &fakeBot{err: errors.New("boom")}, fakePinger{}), homeMessage, "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Error("expected internal error details to stay out of the response")
	}
}

func TestHistory(t *testing.T) {
	bot := &fakeBot{history: []memory.Message{
		{Role: "user", Content: "home the printer", Timestamp: time.Now()},
		{Role: "assistant", Content: "Homing Printer", Timestamp: time.Now()},
	}}
	h := newTestServer("", bot, fakePinger{})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/conv-1/history", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		ConversationID string           `json:"conversation_id"`
		Messages       []memory.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.ConversationID != "conv-1" || len(body.Messages) != 2 {
		t.Errorf("unexpected history %+v", body)
	}
}

func TestHistory_Text(t *testing.T) {
	bot := &fakeBot{formatted: "User: home the printer\nBot: Homing Printer\n"}
	h := newTestServer("", bot, fakePinger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations/conv-1/history?format=text", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain, got %q", ct)
	}
	if rec.Body.String() != bot.formatted {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestHistory_UnknownConversation(t *testing.T) {
	h := newTestServer("", &fakeBot{missing: true}, fakePinger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations/nobody/history", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := decodeError(t, rec).ErrorCode; code != models.ErrorNotFound {
		t.Errorf("expected %s, got %s", models.ErrorNotFound, code)
	}
}

func TestResetConversation(t *testing.T) {
	bot := &fakeBot{}
	h := newTestServer("", bot, fakePinger{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/conversations/conv-1", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(bot.reset) != 1 || bot.reset[0] != "conv-1" {
		t.Errorf("expected conv-1 reset, got %v", bot.reset)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		store  Pinger
		status int
	}{
		{"healthy", fakePinger{}, http.StatusOK},
		{"store down", fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer("", &fakeBot{}, tt.store)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer("", &fakeBot{}, fakePinger{})
	post(t, h, homeMessage, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "octotalk_messages_total") {
		t.Error("expected message counter in metrics output")
	}
}
