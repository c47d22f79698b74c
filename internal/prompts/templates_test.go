package prompts

import (
	"strings"
	"testing"

	"github.com/avvvet/octotalk/internal/device"
	"github.com/avvvet/octotalk/internal/models"
)

func TestFormatStatus_Printing(t *testing.T) {
	status := device.Status{
		Operational:  true,
		SDReady:      true,
		Printing:     true,
		BedTemp:      60,
		ExtruderTemp: 200,
	}

	want := "Printer is operational and is printing. The SD card is available. The bed temperature is 60 and the extruder temperature is 200"
	if got := FormatStatus(status); got != want {
		t.Errorf("unexpected sentence\nwant: %s\ngot:  %s", want, got)
	}
}

func TestFormatStatus_StatePriority(t *testing.T) {
	tests := []struct {
		name   string
		status device.Status
		want   string
	}{
		{"paused overrides all", device.Status{Paused: true, Printing: true, Ready: true}, "and is paused."},
		{"printing overrides ready", device.Status{Printing: true, Ready: true}, "and is printing."},
		{"ready", device.Status{Ready: true}, "and is ready for instructions."},
		{"nothing set", device.Status{}, "and is unknown."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatStatus(tt.status)
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected %q in %q", tt.want, got)
			}
		})
	}
}

func TestFormatStatus_NotOperational(t *testing.T) {
	got := FormatStatus(device.Status{BedTemp: 21.5, ExtruderTemp: 22.25})

	want := "Printer is not operational and is unknown. The SD card is not available. The bed temperature is 21.5 and the extruder temperature is 22.25"
	if got != want {
		t.Errorf("unexpected sentence\nwant: %s\ngot:  %s", want, got)
	}
}

func TestDirectionChoice(t *testing.T) {
	msg := DirectionChoice()

	if !strings.HasPrefix(msg.Text, DirectionQuestion) {
		t.Errorf("expected prompt to start with the question, got %q", msg.Text)
	}
	for i, line := range []string{"1. up", "2. down", "3. left", "4. right", "5. forward", "6. back"} {
		if !strings.Contains(msg.Text, line) {
			t.Errorf("option %d: expected %q in %q", i+1, line, msg.Text)
		}
	}
	if len(msg.Choices) != 6 {
		t.Errorf("expected 6 choices, got %v", msg.Choices)
	}
	if msg.InputHint != models.InputHintExpecting {
		t.Errorf("expected expectingInput, got %s", msg.InputHint)
	}
}

func TestMoveHead(t *testing.T) {
	if got := MoveHead("up", 5).Text; got != "Moving print head up 5mm" {
		t.Errorf("unexpected text %q", got)
	}
	if got := MoveHead("left", 0.5).Text; got != "Moving print head left 0.5mm" {
		t.Errorf("unexpected text %q", got)
	}
}
