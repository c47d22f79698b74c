package device

import "fmt"

// TransportError means the printer could not be reached: connection failure,
// timeout, or the circuit breaker refusing the call.
type TransportError struct {
	Kind CommandKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("printer %s: transport: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DeviceError means the printer answered with an unexpected status code.
type DeviceError struct {
	Kind       CommandKind
	StatusCode int
	Body       string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("printer %s: unexpected status %d", e.Kind, e.StatusCode)
}

// MalformedResponseError means a response body did not have the expected shape.
type MalformedResponseError struct {
	Field string
	Err   error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed printer response: %v", e.Err)
	}
	return fmt.Sprintf("malformed printer response: missing %s", e.Field)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
