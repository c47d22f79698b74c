package prompts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/avvvet/octotalk/internal/device"
	"github.com/avvvet/octotalk/internal/models"
)

const (
	WelcomeMessage  = "Welcome to OctoTalk!"
	WelcomeQuestion = "What can I do for you?"
	FallbackMessage = "I didn't quite get that"

	JobStartAck   = "You have attempted to start a print"
	JobCancelAck  = "You have attempted to stop a print"
	JobPauseAck   = "You have attempted to pause a print"
	JobRestartAck = "You have attempted to restart a print"

	HomingMessage         = "Homing Printer"
	StatusPendingMessage  = "Retrieving Status. Please wait."
	DeviceErrorMessage    = "Error communicating with printer"
	DirectionQuestion     = "Which direction?"
	InvalidChoiceMessage  = "Sorry, that isn't one of the directions I can move."
	AbandonedFlowMessage  = "Okay, I won't move the print head. Ask me again whenever you're ready."
	InternalErrorMessage  = "I'm sorry, I encountered an error processing your request. Please try again."
	StatusSentenceFormat  = "Printer %s operational and is %s. The SD card %s available. The bed temperature is %s and the extruder temperature is %s"
	MoveHeadMessageFormat = "Moving print head %s %smm"
)

// Say builds a message that is spoken the same way it is shown.
func Say(text, inputHint string) models.Message {
	return models.Message{Text: text, Speak: text, InputHint: inputHint}
}

// Welcome is sent when a conversation starts.
func Welcome() []models.Message {
	return []models.Message{
		Say(WelcomeMessage, models.InputHintAccepting),
		Say(WelcomeQuestion, models.InputHintExpecting),
	}
}

// DirectionChoice renders the closed-choice prompt as a numbered list and
// attaches the options as buttons for clients that support them.
func DirectionChoice() models.Message {
	var builder strings.Builder
	builder.WriteString(DirectionQuestion)
	for i, d := range device.Directions {
		builder.WriteString(fmt.Sprintf("\n%d. %s", i+1, d))
	}

	choices := make([]string, len(device.Directions))
	copy(choices, device.Directions)

	return models.Message{
		Text:      builder.String(),
		Speak:     DirectionQuestion + " " + strings.Join(device.Directions, ", "),
		InputHint: models.InputHintExpecting,
		Choices:   choices,
	}
}

// MoveHead confirms a jog.
func MoveHead(direction string, amount float64) models.Message {
	return Say(fmt.Sprintf(MoveHeadMessageFormat, direction, FormatNumber(amount)), models.InputHintIgnoring)
}

// FormatStatus renders the printer status as one sentence.
func FormatStatus(status device.Status) string {
	return fmt.Sprintf(StatusSentenceFormat,
		isOrIsNot(status.Operational),
		stateText(status.State()),
		isOrIsNot(status.SDReady),
		FormatNumber(status.BedTemp),
		FormatNumber(status.ExtruderTemp),
	)
}

// FormatNumber prints the shortest decimal that round-trips: 60, 60.5, 0.1.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func isOrIsNot(b bool) string {
	if b {
		return "is"
	}
	return "is not"
}

func stateText(state device.PrinterState) string {
	if state == device.StateReady {
		return "ready for instructions"
	}
	return string(state)
}
