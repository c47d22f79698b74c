package device

import (
	"fmt"
	"net/http"
	"strings"
)

// CommandKind names a device command for logging, metrics and events
type CommandKind string

const (
	KindHome       CommandKind = "home"
	KindJog        CommandKind = "jog"
	KindJobStart   CommandKind = "job_start"
	KindJobCancel  CommandKind = "job_cancel"
	KindJobPause   CommandKind = "job_pause"
	KindJobRestart CommandKind = "job_restart"
	KindStatus     CommandKind = "status"
)

const (
	printHeadPath = "/api/printer/printhead"
	jobPath       = "/api/job"
	printerPath   = "/api/printer"
)

// Command is a single outbound instruction to the printer API. The API key
// header is added by the client.
type Command struct {
	Kind         CommandKind
	Method       string
	Path         string
	Body         any
	ExpectStatus int
}

func (c Command) String() string {
	return fmt.Sprintf("%s %s (%s)", c.Method, c.Path, c.Kind)
}

type homeBody struct {
	Command string   `json:"command"`
	Axes    []string `json:"axes"`
}

type jogBody struct {
	Command string  `json:"command"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
}

type jobBody struct {
	Command string `json:"command"`
	Action  string `json:"action,omitempty"`
}

// Home homes all three axes.
func Home() Command {
	return Command{
		Kind:         KindHome,
		Method:       http.MethodPost,
		Path:         printHeadPath,
		Body:         homeBody{Command: "home", Axes: []string{"x", "y", "z"}},
		ExpectStatus: http.StatusNoContent,
	}
}

// Jog moves the print head by a relative amount on each axis.
func Jog(x, y, z float64) Command {
	return Command{
		Kind:         KindJog,
		Method:       http.MethodPost,
		Path:         printHeadPath,
		Body:         jogBody{Command: "jog", X: x, Y: y, Z: z},
		ExpectStatus: http.StatusNoContent,
	}
}

func StartJob() Command   { return jobCommand(KindJobStart, "start", "") }
func CancelJob() Command  { return jobCommand(KindJobCancel, "cancel", "") }
func PauseJob() Command   { return jobCommand(KindJobPause, "pause", "pause") }
func RestartJob() Command { return jobCommand(KindJobRestart, "restart", "") }

func jobCommand(kind CommandKind, command, action string) Command {
	return Command{
		Kind:         kind,
		Method:       http.MethodPost,
		Path:         jobPath,
		Body:         jobBody{Command: command, Action: action},
		ExpectStatus: http.StatusNoContent,
	}
}

// StatusRead fetches the printer state.
func StatusRead() Command {
	return Command{
		Kind:         KindStatus,
		Method:       http.MethodGet,
		Path:         printerPath,
		ExpectStatus: http.StatusOK,
	}
}

// Directions in the order they are offered to the user.
var Directions = []string{"up", "down", "left", "right", "forward", "back"}

var directionAliases = map[string]string{
	"upward":    "up",
	"upwards":   "up",
	"downward":  "down",
	"downwards": "down",
	"forwards":  "forward",
	"backward":  "back",
	"backwards": "back",
}

// NormalizeDirection maps a user or classifier supplied word onto one of
// Directions.
func NormalizeDirection(word string) (string, bool) {
	w := strings.ToLower(strings.TrimSpace(word))
	if alias, ok := directionAliases[w]; ok {
		w = alias
	}
	for _, d := range Directions {
		if d == w {
			return d, true
		}
	}
	return "", false
}

// JogToward builds the jog command for a direction word. Left/right travel on
// X, back/forward on Y, down/up on Z.
func JogToward(direction string, amount float64) (Command, error) {
	d, ok := NormalizeDirection(direction)
	if !ok {
		return Command{}, fmt.Errorf("unknown direction %q", direction)
	}

	var x, y, z float64
	switch d {
	case "left":
		x = -amount
	case "right":
		x = amount
	case "back":
		y = -amount
	case "forward":
		y = amount
	case "down":
		z = -amount
	case "up":
		z = amount
	}
	return Jog(x, y, z), nil
}
