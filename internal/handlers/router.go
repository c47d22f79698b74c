package handlers

import (
	"time"

	"go.uber.org/zap"

	"github.com/avvvet/octotalk/internal/device"
	"github.com/avvvet/octotalk/internal/models"
	"github.com/avvvet/octotalk/internal/observability"
	"github.com/avvvet/octotalk/internal/prompts"
)

// Turn is one classified user message.
type Turn struct {
	ConversationID string
	Text           string
	Intent         models.Intent
}

// Result is what a handler decided for a turn. At most one command is
// produced; none for a pure clarification prompt.
type Result struct {
	Intent          string
	Command         *device.Command
	Reply           []models.Message
	NextSlots       *models.SlotState
	ClearSlots      bool
	EndConversation bool
}

// HandlerFunc maps a turn and the conversation's slot state to a result.
type HandlerFunc func(turn Turn, slots *models.SlotState) Result

// Router picks a handler by intent name.
type Router struct {
	handlers map[string]HandlerFunc
	jog      *JogFlow
	log      *zap.Logger
}

func NewRouter(moveDistance float64, log *zap.Logger) *Router {
	r := &Router{
		jog: NewJogFlow(moveDistance),
		log: log,
	}

	r.handlers = map[string]HandlerFunc{
		models.IntentNone:          fallback,
		models.IntentJobStart:      job(device.StartJob, prompts.JobStartAck),
		models.IntentJobCancel:     job(device.CancelJob, prompts.JobCancelAck),
		models.IntentJobPause:      job(device.PauseJob, prompts.JobPauseAck),
		models.IntentJobRestart:    job(device.RestartJob, prompts.JobRestartAck),
		models.IntentPrintHeadHome: home,
		models.IntentPrintHeadJog:  r.jog.Start,
		models.IntentStatus:        status,
	}

	return r
}

// Dispatch routes a turn. A jog flow waiting for a direction gets the turn
// first; if it can't use it and the turn carries another intent, the flow is
// dropped and the intent is routed normally.
func (r *Router) Dispatch(turn Turn, slots *models.SlotState) Result {
	if r.jog.Pending(slots) {
		if !r.isMapped(turn.Intent.Name) {
			return r.jog.Continue(turn, slots)
		}
		if res, ok := r.jog.TryResolve(turn, slots); ok {
			return res
		}

		r.log.Info("Pending prompt interrupted",
			zap.String("conversation_id", turn.ConversationID),
			zap.String("flow", slots.Flow),
			zap.String("intent", turn.Intent.Name),
		)
		observability.SlotPromptsTotal.WithLabelValues(slots.Flow, "interrupted").Inc()

		res := r.route(turn, nil)
		if res.NextSlots == nil {
			res.ClearSlots = true
		}
		return res
	}

	return r.route(turn, slots)
}

// SetClock overrides the time source used to stamp slot state.
func (r *Router) SetClock(now func() time.Time) {
	r.jog.now = now
}

func (r *Router) route(turn Turn, slots *models.SlotState) Result {
	name := turn.Intent.Name
	handler, ok := r.handlers[name]
	if !ok {
		r.log.Debug("Unmapped intent, using fallback",
			zap.String("conversation_id", turn.ConversationID),
			zap.String("intent", name),
		)
		name = models.IntentNone
		handler = r.handlers[models.IntentNone]
	}

	observability.IntentsTotal.WithLabelValues(name).Inc()

	res := handler(turn, slots)
	res.Intent = name
	return res
}

func (r *Router) isMapped(name string) bool {
	if name == models.IntentNone {
		return false
	}
	_, ok := r.handlers[name]
	return ok
}

func fallback(Turn, *models.SlotState) Result {
	return Result{
		Reply: []models.Message{prompts.Say(prompts.FallbackMessage, models.InputHintAccepting)},
	}
}

func job(build func() device.Command, ack string) HandlerFunc {
	return func(Turn, *models.SlotState) Result {
		cmd := build()
		return Result{
			Command: &cmd,
			Reply:   []models.Message{prompts.Say(ack, models.InputHintAccepting)},
		}
	}
}

func home(Turn, *models.SlotState) Result {
	cmd := device.Home()
	return Result{
		Command:         &cmd,
		Reply:           []models.Message{prompts.Say(prompts.HomingMessage, models.InputHintIgnoring)},
		EndConversation: true,
	}
}

func status(Turn, *models.SlotState) Result {
	cmd := device.StatusRead()
	return Result{
		Command: &cmd,
		Reply:   []models.Message{prompts.Say(prompts.StatusPendingMessage, models.InputHintIgnoring)},
	}
}
