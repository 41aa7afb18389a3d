package devices

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jpalmerr/labconsole/internal/backend"
)

// ErrUnreachable wraps transport failures: the backend could not be reached
// or did not answer in time.
var ErrUnreachable = errors.New("backend unreachable")

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return e.Message
}

// Action is one of the per-device backend routes.
type Action string

const (
	ActionConnect    Action = "connect"
	ActionDisconnect Action = "disconnect"
	ActionStatus     Action = "status"
)

// method returns the HTTP method the backend expects for the action.
func (a Action) method() string {
	if a == ActionStatus {
		return http.MethodGet
	}
	return http.MethodPost
}

// Client calls the per-device routes /api/<route>/<action> on the backend.
type Client struct {
	http    *backend.Client
	baseURL string
	timeout time.Duration
}

// NewClient creates a device client for the backend at baseURL. A zero
// timeout uses the transport default.
func NewClient(transport *backend.Client, baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    transport,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// URL returns the absolute URL of an action on a device route.
func (c *Client) URL(route string, action Action) string {
	return fmt.Sprintf("%s/api/%s/%s", c.baseURL, strings.Trim(route, "/"), action)
}

// Connect asks the backend to open the device connection.
func (c *Client) Connect(ctx context.Context, route string) (Outcome, error) {
	return c.Do(ctx, route, ActionConnect)
}

// Disconnect asks the backend to close the device connection.
func (c *Client) Disconnect(ctx context.Context, route string) (Outcome, error) {
	return c.Do(ctx, route, ActionDisconnect)
}

// Status reads the device's current state.
func (c *Client) Status(ctx context.Context, route string) (Outcome, error) {
	return c.Do(ctx, route, ActionStatus)
}

// Do performs one device call and normalizes the answer.
//
// Errors wrap [ErrUnreachable] for transport failures and [ErrProtocol] for
// error envelopes or undecodable bodies; non-2xx answers return a
// [*StatusError].
func (c *Client) Do(ctx context.Context, route string, action Action) (Outcome, error) {
	resp := c.http.Fetch(ctx, backend.Request{
		Method:  action.method(),
		URL:     c.URL(route, action),
		Timeout: c.timeout,
	})

	if resp.Error != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrUnreachable, resp.Error)
	}
	if !resp.OK() {
		return Outcome{}, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body, resp.StatusCode),
		}
	}

	out, err := Normalize(resp.Body)
	if err != nil {
		return out, fmt.Errorf("%s %s: %w", route, action, err)
	}
	return out, nil
}
