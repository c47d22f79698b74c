package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/avvvet/octotalk/internal/handlers"
	"github.com/avvvet/octotalk/internal/models"
	"github.com/avvvet/octotalk/internal/observability"
)

type NATSConfig struct {
	URL            string
	Name           string
	RequestSubject string
	EventSubject   string
	Timeout        time.Duration
}

// NATSTransport answers chat messages over request/reply and publishes
// device command events.
type NATSTransport struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	config NATSConfig
	bot    Bot
	log    *zap.Logger
}

func NewNATSTransport(cfg NATSConfig, bot Bot, log *zap.Logger) (*NATSTransport, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info("Connected to NATS server", zap.String("url", cfg.URL))

	return &NATSTransport{
		conn:   conn,
		config: cfg,
		bot:    bot,
		log:    log,
	}, nil
}

func (nt *NATSTransport) Start() error {
	sub, err := nt.conn.Subscribe(nt.config.RequestSubject, nt.handleRequest)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", nt.config.RequestSubject, err)
	}
	nt.sub = sub

	nt.log.Info("Subscribed to subject", zap.String("subject", nt.config.RequestSubject))
	return nil
}

func (nt *NATSTransport) handleRequest(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), nt.config.Timeout)
	defer cancel()

	if err := msg.Respond(nt.process(ctx, msg.Data)); err != nil {
		nt.log.Error("Error sending response", zap.Error(err))
	}
}

// process turns one request payload into the reply payload.
func (nt *NATSTransport) process(ctx context.Context, data []byte) []byte {
	var inbound models.InboundMessage
	if err := json.Unmarshal(data, &inbound); err != nil {
		nt.log.Warn("Error parsing request", zap.Error(err))
		return nt.errorPayload(models.ErrorParseError, "invalid request format")
	}
	observability.MessagesTotal.WithLabelValues("nats", inbound.Type).Inc()

	reply, err := nt.bot.HandleMessage(ctx, &inbound)
	if err != nil {
		if errors.Is(err, handlers.ErrMissingConversationID) {
			return nt.errorPayload(models.ErrorInvalid, err.Error())
		}
		nt.log.Error("Error handling message",
			zap.String("conversation_id", inbound.ConversationID),
			zap.Error(err),
		)
		return nt.errorPayload(models.ErrorInternal, "internal error")
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		nt.log.Error("Failed to marshal reply", zap.Error(err))
		return nt.errorPayload(models.ErrorInternal, "internal error")
	}

	nt.log.Debug("Reply sent",
		zap.String("conversation_id", reply.ConversationID),
		zap.Int("messages", len(reply.Messages)),
	)
	return payload
}

func (nt *NATSTransport) errorPayload(code, message string) []byte {
	payload, _ := json.Marshal(models.ErrorReply{ErrorCode: code, ErrorMessage: message})
	return payload
}

// NotifyCommand publishes a device command event.
func (nt *NATSTransport) NotifyCommand(_ context.Context, event models.CommandEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal command event: %w", err)
	}
	if err := nt.conn.Publish(nt.config.EventSubject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", nt.config.EventSubject, err)
	}
	return nil
}

func (nt *NATSTransport) Close() error {
	if nt.sub != nil {
		if err := nt.sub.Unsubscribe(); err != nil {
			nt.log.Warn("Failed to unsubscribe", zap.Error(err))
		}
	}
	if nt.conn != nil {
		if err := nt.conn.Drain(); err != nil {
			nt.conn.Close()
		}
		nt.log.Info("NATS connection closed")
	}
	return nil
}
