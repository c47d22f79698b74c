package device

import "encoding/json"

// PrinterState is the single state reported to the user
type PrinterState string

const (
	StatePaused   PrinterState = "paused"
	StatePrinting PrinterState = "printing"
	StateReady    PrinterState = "ready"
	StateUnknown  PrinterState = "unknown"
)

// Status is the parsed answer of GET /api/printer
type Status struct {
	Operational  bool
	SDReady      bool
	Paused       bool
	Printing     bool
	Ready        bool
	BedTemp      float64
	ExtruderTemp float64
}

// State resolves the flags, which are not mutually exclusive. Paused wins
// over printing, printing over ready.
func (s Status) State() PrinterState {
	switch {
	case s.Paused:
		return StatePaused
	case s.Printing:
		return StatePrinting
	case s.Ready:
		return StateReady
	default:
		return StateUnknown
	}
}

type statusPayload struct {
	State *struct {
		Flags *struct {
			Operational *bool `json:"operational"`
			SDReady     *bool `json:"sdReady"`
			Paused      *bool `json:"paused"`
			Printing    *bool `json:"printing"`
			Ready       *bool `json:"ready"`
		} `json:"flags"`
	} `json:"state"`
	Temperature *struct {
		Bed   *temperatureReading `json:"bed"`
		Tool0 *temperatureReading `json:"tool0"`
	} `json:"temperature"`
}

type temperatureReading struct {
	Actual *float64 `json:"actual"`
}

// ParseStatus decodes a printer status body. Any missing field is a
// MalformedResponseError.
func ParseStatus(body []byte) (*Status, error) {
	var p statusPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}

	if p.State == nil || p.State.Flags == nil {
		return nil, &MalformedResponseError{Field: "state.flags"}
	}
	flags := p.State.Flags
	for _, f := range []struct {
		name string
		v    *bool
	}{
		{"state.flags.operational", flags.Operational},
		{"state.flags.sdReady", flags.SDReady},
		{"state.flags.paused", flags.Paused},
		{"state.flags.printing", flags.Printing},
		{"state.flags.ready", flags.Ready},
	} {
		if f.v == nil {
			return nil, &MalformedResponseError{Field: f.name}
		}
	}

	if p.Temperature == nil {
		return nil, &MalformedResponseError{Field: "temperature"}
	}
	if p.Temperature.Bed == nil || p.Temperature.Bed.Actual == nil {
		return nil, &MalformedResponseError{Field: "temperature.bed.actual"}
	}
	if p.Temperature.Tool0 == nil || p.Temperature.Tool0.Actual == nil {
		return nil, &MalformedResponseError{Field: "temperature.tool0.actual"}
	}

	return &Status{
		Operational:  *flags.Operational,
		SDReady:      *flags.SDReady,
		Paused:       *flags.Paused,
		Printing:     *flags.Printing,
		Ready:        *flags.Ready,
		BedTemp:      *p.Temperature.Bed.Actual,
		ExtruderTemp: *p.Temperature.Tool0.Actual,
	}, nil
}
