package handlers

import (
	"testing"

	"go.uber.org/zap"

	"github.com/avvvet/octotalk/internal/device"
	"github.com/avvvet/octotalk/internal/models"
	"github.com/avvvet/octotalk/internal/prompts"
)

func newTestRouter() *Router {
	return NewRouter(10, zap.NewNop())
}

func turnFor(intent string, entities ...models.Entity) Turn {
	return Turn{
		ConversationID: "conv-1",
		Intent:         models.Intent{Name: intent, Entities: entities, Confidence: 0.9},
	}
}

func TestDispatch_FixedIntents(t *testing.T) {
	tests := []struct {
		intent  string
		kind    device.CommandKind
		reply   string
		endConv bool
	}{
		{models.IntentJobStart, device.KindJobStart, prompts.JobStartAck, false},
		{models.IntentJobCancel, device.KindJobCancel, prompts.JobCancelAck, false},
		{models.IntentJobPause, device.KindJobPause, prompts.JobPauseAck, false},
		{models.IntentJobRestart, device.KindJobRestart, prompts.JobRestartAck, false},
		{models.IntentPrintHeadHome, device.KindHome, prompts.HomingMessage, true},
		{models.IntentStatus, device.KindStatus, prompts.StatusPendingMessage, false},
	}

	router := newTestRouter()
	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			res := router.Dispatch(turnFor(tt.intent), nil)

			if res.Command == nil {
				t.Fatal("expected a device command")
			}
			if res.Command.Kind != tt.kind {
				t.Errorf("expected %s, got %s", tt.kind, res.Command.Kind)
			}
			if len(res.Reply) != 1 || res.Reply[0].Text != tt.reply {
				t.Errorf("expected reply %q, got %+v", tt.reply, res.Reply)
			}
			if res.EndConversation != tt.endConv {
				t.Errorf("expected end conversation %v, got %v", tt.endConv, res.EndConversation)
			}
			if res.NextSlots != nil {
				t.Errorf("expected no slot state, got %+v", res.NextSlots)
			}
			if res.Intent != tt.intent {
				t.Errorf("expected intent %s recorded, got %s", tt.intent, res.Intent)
			}
		})
	}
}

func TestDispatch_NoneIsFallback(t *testing.T) {
	res := newTestRouter().Dispatch(turnFor(models.IntentNone), nil)

	if res.Command != nil {
		t.Errorf("expected no command, got %s", res.Command)
	}
	if len(res.Reply) != 1 || res.Reply[0].Text != prompts.FallbackMessage {
		t.Errorf("expected fallback, got %+v", res.Reply)
	}
}

func TestDispatch_UnknownIntentRoutesLikeNone(t *testing.T) {
	router := newTestRouter()

	unknown := router.Dispatch(turnFor("Foo.Bar"), nil)
	none := router.Dispatch(turnFor(models.IntentNone), nil)

	if unknown.Command != nil || len(unknown.Reply) != 1 || unknown.Reply[0].Text != none.Reply[0].Text {
		t.Errorf("expected unknown intent to match None, got %+v", unknown)
	}
	if unknown.Intent != models.IntentNone {
		t.Errorf("expected intent recorded as None, got %s", unknown.Intent)
	}
}

func TestDispatch_IntentNamesAreCaseSensitive(t *testing.T) {
	res := newTestRouter().Dispatch(turnFor("jobOperations.start"), nil)

	if res.Command != nil {
		t.Errorf("expected no command for differently-cased intent, got %s", res.Command)
	}
}

func TestDispatch_PendingPromptInterruptedByOtherIntent(t *testing.T) {
	router := newTestRouter()
	start := router.Dispatch(turnFor(models.IntentPrintHeadJog), nil)
	if start.NextSlots == nil {
		t.Fatal("expected pending jog")
	}

	turn := turnFor(models.IntentStatus)
	turn.Text = "how is the printer doing"
	res := router.Dispatch(turn, start.NextSlots)

	if res.Command == nil || res.Command.Kind != device.KindStatus {
		t.Fatalf("expected status command, got %+v", res.Command)
	}
	if !res.ClearSlots {
		t.Error("expected interrupted jog state to be cleared")
	}
}

func TestDispatch_PendingPromptKeepsPriorityOverMappedIntent(t *testing.T) {
	router := newTestRouter()
	start := router.Dispatch(turnFor(models.IntentPrintHeadJog, models.Entity{Type: models.EntityNumber, Value: "5"}), nil)

	// the answer happens to be classified as a jog with a direction
	turn := turnFor(models.IntentPrintHeadJog, models.Entity{Type: models.EntityDirection, Value: "up"})
	turn.Text = "up"
	res := router.Dispatch(turn, start.NextSlots)

	if res.Command == nil || res.Command.Kind != device.KindJog {
		t.Fatalf("expected jog command, got %+v", res.Command)
	}
	if res.Reply[0].Text != "Moving print head up 5mm" {
		t.Errorf("expected persisted amount to be used, got %q", res.Reply[0].Text)
	}
}
