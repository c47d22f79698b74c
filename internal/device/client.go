package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/avvvet/octotalk/internal/observability"
)

const maxBodyBytes = 1 << 20

// RawResponse is what the printer answered.
type RawResponse struct {
	StatusCode int
	Body       []byte
}

// Client talks to an OctoPrint-compatible printer API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *zap.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "octoprint",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Printer circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
		breaker: breaker,
		log:     log,
	}
}

// Send issues the command and checks its expected status code. A non-nil
// RawResponse is returned alongside a DeviceError.
func (c *Client) Send(ctx context.Context, cmd Command) (*RawResponse, error) {
	start := time.Now()
	raw, err := c.do(ctx, cmd)
	observability.DeviceLatency.WithLabelValues(string(cmd.Kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		observability.DeviceRequestsTotal.WithLabelValues(string(cmd.Kind), "transport_error").Inc()
		c.log.Error("Printer request failed",
			zap.String("command", string(cmd.Kind)),
			zap.Error(err),
		)
		return nil, err
	}

	if raw.StatusCode != cmd.ExpectStatus {
		observability.DeviceRequestsTotal.WithLabelValues(string(cmd.Kind), "device_error").Inc()
		c.log.Error("Unexpected printer response",
			zap.String("command", string(cmd.Kind)),
			zap.Int("status", raw.StatusCode),
			zap.ByteString("body", raw.Body),
		)
		return raw, &DeviceError{Kind: cmd.Kind, StatusCode: raw.StatusCode, Body: string(raw.Body)}
	}

	observability.DeviceRequestsTotal.WithLabelValues(string(cmd.Kind), "ok").Inc()
	c.log.Debug("Printer command accepted",
		zap.String("command", string(cmd.Kind)),
		zap.Int("status", raw.StatusCode),
	)
	return raw, nil
}

// FetchStatus reads and parses the printer state.
func (c *Client) FetchStatus(ctx context.Context) (*Status, error) {
	raw, err := c.Send(ctx, StatusRead())
	if err != nil {
		return nil, err
	}

	status, err := ParseStatus(raw.Body)
	if err != nil {
		c.log.Error("Failed to parse printer status",
			zap.ByteString("body", raw.Body),
			zap.Error(err),
		)
		return nil, err
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, cmd Command) (*RawResponse, error) {
	var body io.Reader
	if cmd.Body != nil {
		data, err := json.Marshal(cmd.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s body: %w", cmd.Kind, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cmd.Method, c.baseURL+cmd.Path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", cmd.Kind, err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if cmd.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}

		raw := &RawResponse{StatusCode: resp.StatusCode, Body: data}
		// 5xx counts against the breaker but is still a device answer
		if resp.StatusCode >= 500 {
			return raw, fmt.Errorf("server error: %d", resp.StatusCode)
		}
		return raw, nil
	})

	if raw, ok := result.(*RawResponse); ok && raw != nil {
		return raw, nil
	}
	if err != nil {
		return nil, &TransportError{Kind: cmd.Kind, Err: err}
	}
	return nil, &TransportError{Kind: cmd.Kind, Err: fmt.Errorf("empty response")}
}
