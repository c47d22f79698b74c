package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/avvvet/octotalk/internal/device"
	"github.com/avvvet/octotalk/internal/models"
	"github.com/avvvet/octotalk/internal/observability"
	"github.com/avvvet/octotalk/internal/prompts"
)

// MaxDirectionRetries is how many unusable answers to the direction prompt
// are tolerated before the flow is dropped.
const MaxDirectionRetries = 3

// JogFlow resolves direction and amount for a print head jog, across turns
// when the direction is missing. Only the direction is ever prompted for.
//
//	start ── direction known ──────────────────────────────▶ Ready ─▶ Completed
//	  └──── no direction ─▶ AwaitingDirection ── answered ─▶ Ready ─▶ Completed
//	                          │   ▲
//	                          └───┘ invalid answer (until MaxDirectionRetries)
type JogFlow struct {
	moveDistance float64
	now          func() time.Time
}

func NewJogFlow(moveDistance float64) *JogFlow {
	return &JogFlow{
		moveDistance: moveDistance,
		now:          time.Now,
	}
}

// Pending reports whether slots hold a jog waiting for its direction.
func (f *JogFlow) Pending(slots *models.SlotState) bool {
	return slots != nil && slots.Flow == models.FlowJog && slots.Step == models.StepAwaitingDirection
}

// Start handles the first turn of a jog intent.
func (f *JogFlow) Start(turn Turn, _ *models.SlotState) Result {
	amount := f.amountFrom(turn.Intent, f.moveDistance)

	if direction, ok := directionEntity(turn.Intent); ok {
		return f.complete(direction, amount)
	}

	observability.SlotPromptsTotal.WithLabelValues(models.FlowJog, "prompted").Inc()
	return Result{
		Reply: []models.Message{prompts.DirectionChoice()},
		NextSlots: &models.SlotState{
			Flow:      models.FlowJog,
			Step:      models.StepAwaitingDirection,
			Amount:    &amount,
			UpdatedAt: f.now(),
		},
	}
}

// TryResolve completes a pending jog if the turn names a direction, either as
// an answer to the choice prompt or as a Direction entity.
func (f *JogFlow) TryResolve(turn Turn, slots *models.SlotState) (Result, bool) {
	amount := f.moveDistance
	if slots != nil && slots.Amount != nil {
		amount = *slots.Amount
	}

	// A choice answer only names the direction; a number entity in it is
	// the list index, not a distance.
	direction, ok := resolveChoice(turn.Text)
	if !ok {
		direction, ok = directionEntity(turn.Intent)
		if !ok {
			return Result{}, false
		}
		amount = f.amountFrom(turn.Intent, amount)
	}

	observability.SlotPromptsTotal.WithLabelValues(models.FlowJog, "answered").Inc()
	res := f.complete(direction, amount)
	res.Intent = models.IntentPrintHeadJog
	return res, true
}

// Continue handles an answer to the direction prompt. An unusable answer
// re-prompts and keeps the state, until MaxDirectionRetries is reached.
func (f *JogFlow) Continue(turn Turn, slots *models.SlotState) Result {
	if res, ok := f.TryResolve(turn, slots); ok {
		return res
	}

	next := *slots
	next.Retries++
	next.UpdatedAt = f.now()

	if next.Retries >= MaxDirectionRetries {
		observability.SlotPromptsTotal.WithLabelValues(models.FlowJog, "abandoned").Inc()
		return Result{
			Intent:     models.IntentPrintHeadJog,
			Reply:      []models.Message{prompts.Say(prompts.AbandonedFlowMessage, models.InputHintAccepting)},
			ClearSlots: true,
		}
	}

	observability.SlotPromptsTotal.WithLabelValues(models.FlowJog, "invalid").Inc()
	return Result{
		Intent: models.IntentPrintHeadJog,
		Reply: []models.Message{
			prompts.Say(prompts.InvalidChoiceMessage, models.InputHintAccepting),
			prompts.DirectionChoice(),
		},
		NextSlots: &next,
	}
}

func (f *JogFlow) complete(direction string, amount float64) Result {
	cmd, err := device.JogToward(direction, amount)
	if err != nil {
		// directions are normalised before reaching here
		return Result{
			Reply:      []models.Message{prompts.Say(prompts.FallbackMessage, models.InputHintAccepting)},
			ClearSlots: true,
		}
	}

	return Result{
		Command:    &cmd,
		Reply:      []models.Message{prompts.MoveHead(direction, amount)},
		ClearSlots: true,
	}
}

func (f *JogFlow) amountFrom(intent models.Intent, fallback float64) float64 {
	e, ok := intent.FindEntity(models.EntityNumber)
	if !ok {
		return fallback
	}
	n, ok := e.Number()
	if !ok || n <= 0 {
		return fallback
	}
	return n
}

func directionEntity(intent models.Intent) (string, bool) {
	e, ok := intent.FindEntity(models.EntityDirection)
	if !ok {
		return "", false
	}
	return device.NormalizeDirection(e.Value)
}

// resolveChoice accepts a direction word or its 1-based position in the list.
func resolveChoice(text string) (string, bool) {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "."))
	if text == "" {
		return "", false
	}
	if n, err := strconv.Atoi(text); err == nil {
		if n >= 1 && n <= len(device.Directions) {
			return device.Directions[n-1], true
		}
		return "", false
	}
	return device.NormalizeDirection(text)
}
