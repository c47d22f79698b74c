package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avvvet/octotalk/internal/classifier"
	"github.com/avvvet/octotalk/internal/device"
	"github.com/avvvet/octotalk/internal/memory"
	"github.com/avvvet/octotalk/internal/models"
	"github.com/avvvet/octotalk/internal/observability"
	"github.com/avvvet/octotalk/internal/prompts"
)

// ErrMissingConversationID is returned for an inbound message without a
// conversation id. It is the only error HandleMessage returns.
var ErrMissingConversationID = errors.New("conversation_id is required")

// Printer is the part of the device client the message handler needs.
type Printer interface {
	Send(ctx context.Context, cmd device.Command) (*device.RawResponse, error)
	FetchStatus(ctx context.Context) (*device.Status, error)
}

// CommandNotifier is told about every device command that was attempted.
type CommandNotifier interface {
	NotifyCommand(ctx context.Context, event models.CommandEvent) error
}

type MessageHandler struct {
	classifier classifier.IntentClassifier
	router     *Router
	memory     *memory.Manager
	printer    Printer
	notifier   CommandNotifier
	appID      string
	tzOffset   int
	log        *zap.Logger
}

func NewMessageHandler(
	intents classifier.IntentClassifier,
	router *Router,
	mem *memory.Manager,
	printer Printer,
	appID string,
	tzOffset int,
	log *zap.Logger,
) *MessageHandler {
	return &MessageHandler{
		classifier: intents,
		router:     router,
		memory:     mem,
		printer:    printer,
		appID:      appID,
		tzOffset:   tzOffset,
		log:        log,
	}
}

// SetNotifier registers a receiver for command events. Nil disables them.
func (h *MessageHandler) SetNotifier(n CommandNotifier) {
	h.notifier = n
}

// HandleMessage runs one inbound activity to completion: classify, dispatch,
// at most one printer call, then the reply. Failures inside the turn become
// reply text.
func (h *MessageHandler) HandleMessage(ctx context.Context, msg *models.InboundMessage) (*models.OutboundReply, error) {
	if err := validateMessage(msg); err != nil {
		return nil, err
	}

	reply := &models.OutboundReply{
		ID:             uuid.NewString(),
		ConversationID: msg.ConversationID,
		ReplyToID:      msg.ID,
		From:           h.appID,
		Messages:       []models.Message{},
	}

	switch msg.Type {
	case models.ActivityConversationUpdate:
		if err := h.memory.Touch(ctx, msg.ConversationID); err != nil {
			h.log.Warn("Failed to mark conversation active",
				zap.String("conversation_id", msg.ConversationID),
				zap.Error(err),
			)
		}
		reply.Messages = prompts.Welcome()
		return reply, nil
	case models.ActivityMessage, "":
	default:
		h.log.Debug("Ignoring activity",
			zap.String("conversation_id", msg.ConversationID),
			zap.String("type", msg.Type),
		)
		return reply, nil
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		reply.Messages = []models.Message{prompts.Say(prompts.FallbackMessage, models.InputHintAccepting)}
		return reply, nil
	}

	intent := h.classify(ctx, msg, text)

	slots, err := h.memory.LoadSlots(ctx, msg.ConversationID)
	if err != nil {
		h.log.Error("Failed to load slot state",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err),
		)
		reply.Messages = []models.Message{prompts.Say(prompts.InternalErrorMessage, models.InputHintAccepting)}
		return reply, nil
	}

	res := h.router.Dispatch(Turn{
		ConversationID: msg.ConversationID,
		Text:           text,
		Intent:         intent,
	}, slots)

	reply.Messages = append(reply.Messages, res.Reply...)
	if res.Command != nil {
		reply.Messages = append(reply.Messages, h.execute(ctx, msg.ConversationID, res.Intent, *res.Command)...)
	}
	reply.EndOfDialog = res.EndConversation

	h.persistSlots(ctx, msg.ConversationID, res)
	h.recordTranscript(ctx, msg, text, reply.Messages)

	h.log.Info("Message handled",
		zap.String("conversation_id", msg.ConversationID),
		zap.String("intent", res.Intent),
		zap.Bool("command", res.Command != nil),
		zap.Bool("awaiting_input", res.NextSlots != nil),
	)

	return reply, nil
}

// History returns the stored transcript of a conversation.
func (h *MessageHandler) History(ctx context.Context, conversationID string) ([]memory.Message, error) {
	return h.memory.GetMessages(ctx, conversationID)
}

// FormattedHistory returns the transcript as "User:" / "Bot:" lines.
func (h *MessageHandler) FormattedHistory(ctx context.Context, conversationID string) (string, error) {
	return h.memory.GetFormattedHistory(ctx, conversationID)
}

// ConversationExists reports whether anything is stored for a conversation.
func (h *MessageHandler) ConversationExists(ctx context.Context, conversationID string) (bool, error) {
	return h.memory.SessionExists(ctx, conversationID)
}

// ResetConversation forgets the transcript and any pending prompt.
func (h *MessageHandler) ResetConversation(ctx context.Context, conversationID string) error {
	return h.memory.ClearSession(ctx, conversationID)
}

func validateMessage(msg *models.InboundMessage) error {
	if msg == nil || strings.TrimSpace(msg.ConversationID) == "" {
		return ErrMissingConversationID
	}
	return nil
}

func (h *MessageHandler) classify(ctx context.Context, msg *models.InboundMessage, text string) models.Intent {
	offset := h.tzOffset
	if msg.TimezoneOffset != nil {
		offset = *msg.TimezoneOffset
	}

	intent, err := h.classifier.Classify(ctx, classifier.Query{
		Text:           text,
		Locale:         msg.Locale,
		TimezoneOffset: offset,
	})
	if err != nil {
		observability.ClassifierErrorsTotal.Inc()
		h.log.Warn("Classification failed, treating as None",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err),
		)
		return models.NoneIntent()
	}
	if intent.Name == "" {
		intent.Name = models.IntentNone
	}
	return intent
}

// execute issues the single device call of this turn and returns any
// follow-up messages. Printer details stay in the logs.
func (h *MessageHandler) execute(ctx context.Context, conversationID, intent string, cmd device.Command) []models.Message {
	var (
		follow []models.Message
		err    error
	)

	if cmd.Kind == device.KindStatus {
		var status *device.Status
		status, err = h.printer.FetchStatus(ctx)
		if err == nil {
			follow = append(follow, prompts.Say(prompts.FormatStatus(*status), models.InputHintAccepting))
		}
	} else {
		_, err = h.printer.Send(ctx, cmd)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
		h.logDeviceError(conversationID, cmd, err)
		follow = append(follow, prompts.Say(prompts.DeviceErrorMessage, models.InputHintAccepting))
	}

	h.notify(ctx, models.CommandEvent{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Intent:         intent,
		Command:        string(cmd.Kind),
		Method:         cmd.Method,
		Path:           cmd.Path,
		Outcome:        outcome,
		Timestamp:      time.Now().UTC(),
	})

	return follow
}

func (h *MessageHandler) logDeviceError(conversationID string, cmd device.Command, err error) {
	fields := []zap.Field{
		zap.String("conversation_id", conversationID),
		zap.String("command", cmd.String()),
		zap.Error(err),
	}

	var devErr *device.DeviceError
	var transportErr *device.TransportError
	var malformedErr *device.MalformedResponseError
	switch {
	case errors.As(err, &devErr):
		fields = append(fields, zap.Int("status", devErr.StatusCode), zap.String("body", devErr.Body))
		h.log.Error("Printer rejected command", fields...)
	case errors.As(err, &transportErr):
		h.log.Error("Printer unreachable", fields...)
	case errors.As(err, &malformedErr):
		fields = append(fields, zap.String("field", malformedErr.Field))
		h.log.Error("Printer sent a malformed response", fields...)
	default:
		h.log.Error("Printer command failed", fields...)
	}
}

func (h *MessageHandler) notify(ctx context.Context, event models.CommandEvent) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.NotifyCommand(ctx, event); err != nil {
		h.log.Warn("Failed to publish command event",
			zap.String("conversation_id", event.ConversationID),
			zap.String("command", event.Command),
			zap.Error(err),
		)
	}
}

func (h *MessageHandler) persistSlots(ctx context.Context, conversationID string, res Result) {
	var err error
	switch {
	case res.NextSlots != nil:
		err = h.memory.SaveSlots(ctx, conversationID, res.NextSlots)
	case res.ClearSlots:
		err = h.memory.ClearSlots(ctx, conversationID)
	default:
		return
	}
	if err != nil {
		h.log.Error("Failed to persist slot state",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}
}

func (h *MessageHandler) recordTranscript(ctx context.Context, msg *models.InboundMessage, text string, replies []models.Message) {
	if err := h.memory.SaveUserMessage(ctx, msg.ConversationID, msg.UserID, text); err != nil {
		h.log.Warn("Failed to save user message",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err),
		)
		return
	}
	for _, m := range replies {
		if err := h.memory.SaveAssistantMessage(ctx, msg.ConversationID, m.Text); err != nil {
			h.log.Warn("Failed to save bot message",
				zap.String("conversation_id", msg.ConversationID),
				zap.Error(err),
			)
			return
		}
	}
}
