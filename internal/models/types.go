package models

import (
	"strconv"
	"strings"
	"time"
)

// Intent names recognised by the classifier app
const (
	IntentNone          = "None"
	IntentJobStart      = "JobOperations.Start"
	IntentJobCancel     = "JobOperations.Cancel"
	IntentJobPause      = "JobOperations.Pause"
	IntentJobRestart    = "JobOperations.Restart"
	IntentPrintHeadHome = "PrinterOperations.PrintHead.Home"
	IntentPrintHeadJog  = "PrinterOperations.PrintHead.Jog"
	IntentStatus        = "PrinterOperations.Status"
)

// Entity types
const (
	EntityDirection = "Direction"
	EntityNumber    = "number"
)

// Intent is the classifier's guess for a single message
type Intent struct {
	Name       string   `json:"name"`
	Entities   []Entity `json:"entities"`
	Confidence float64  `json:"confidence"`
}

// Entity is a typed value extracted from the message text
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NoneIntent is used whenever classification fails or yields nothing
func NoneIntent() Intent {
	return Intent{Name: IntentNone}
}

// FindEntity returns the first entity of the given type.
func (i Intent) FindEntity(entityType string) (Entity, bool) {
	for _, e := range i.Entities {
		if e.Type == entityType {
			return e, true
		}
	}
	return Entity{}, false
}

// Number parses the entity value as a number.
func (e Entity) Number() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(e.Value), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Flow steps of the slot-filling state machine
type FlowStep string

const (
	StepAwaitingDirection FlowStep = "AWAITING_DIRECTION"
	StepReady             FlowStep = "READY"
	StepCompleted         FlowStep = "COMPLETED"
)

const FlowJog = "jog"

// SlotState is the per-conversation state of an unfinished multi-turn flow
type SlotState struct {
	Flow      string    `json:"flow"`
	Step      FlowStep  `json:"step"`
	Direction string    `json:"direction,omitempty"`
	Amount    *float64  `json:"amount,omitempty"`
	Retries   int       `json:"retries"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the state was last touched more than ttl ago.
// A non-positive ttl never expires.
func (s *SlotState) Expired(now time.Time, ttl time.Duration) bool {
	if s == nil || ttl <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}

// Inbound activity types
const (
	ActivityMessage            = "message"
	ActivityConversationUpdate = "conversationUpdate"
)

// Input hints attached to outgoing messages
const (
	InputHintAccepting = "acceptingInput"
	InputHintExpecting = "expectingInput"
	InputHintIgnoring  = "ignoringInput"
)

// InboundMessage is a chat webhook delivery
type InboundMessage struct {
	ID             string `json:"id,omitempty"`
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
	Text           string `json:"text"`
	Locale         string `json:"locale,omitempty"`
	TimezoneOffset *int   `json:"timezone_offset,omitempty"`
}

// Message is one chat bubble sent back to the user
type Message struct {
	Text      string   `json:"text"`
	Speak     string   `json:"speak,omitempty"`
	InputHint string   `json:"input_hint,omitempty"`
	Choices   []string `json:"choices,omitempty"`
}

// OutboundReply is the response to an inbound message
type OutboundReply struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	ReplyToID      string    `json:"reply_to_id,omitempty"`
	From           string    `json:"from,omitempty"`
	Messages       []Message `json:"messages"`
	EndOfDialog    bool      `json:"end_of_dialog,omitempty"`
}

// ErrorReply is the body of a rejected webhook delivery
type ErrorReply struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Error codes
const (
	ErrorParseError   = "PARSE_ERROR"
	ErrorUnauthorized = "UNAUTHORIZED"
	ErrorInvalid      = "INVALID_REQUEST"
	ErrorNotFound     = "NOT_FOUND"
	ErrorInternal     = "INTERNAL_ERROR"
)

// CommandEvent is published after a device command has been attempted
type CommandEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Intent         string    `json:"intent"`
	Command        string    `json:"command"`
	Method         string    `json:"method"`
	Path           string    `json:"path"`
	Outcome        string    `json:"outcome"` // "ok" or "error"
	Timestamp      time.Time `json:"timestamp"`
}
