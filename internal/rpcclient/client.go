// Package rpcclient provides a JSON-RPC 2.0 client for staking nodes.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultMaxRetryTimes = 3
	defaultRetryInterval = 200 * time.Millisecond
)

// Client is a JSON-RPC 2.0 HTTP client.
type Client struct {
	endpoint      string
	http          *http.Client
	maxRetryTimes uint
	retryInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithRetry sets how many attempts are made on transport failures and the
// initial back-off between them. Attempts of 1 disables retrying.
func WithRetry(attempts uint, interval time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxRetryTimes = attempts
		}
		c.retryInterval = interval
	}
}

// New creates a new RPC client targeting the given endpoint URL.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:      endpoint,
		http:          &http.Client{Timeout: defaultTimeout},
		maxRetryTimes: defaultMaxRetryTimes,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      string      `json:"id"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// rpcError is a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// RPCError is returned when the server responds with an error.
type RPCError struct {
	Code    int
	Message string
	// Kind and Reason are set when the server classified an instruction
	// failure, e.g. "StateViolation" / "TimeLockNotPassed".
	Kind   string
	Reason string
}

func (e *RPCError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("rpc error %d: %s/%s: %s", e.Code, e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsRPCError reports whether err is a server-side error with the given code.
func IsRPCError(err error, code int) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}

// Call invokes a JSON-RPC method and unmarshals the result into the provided pointer.
// If result is nil, the response result is discarded.
func (c *Client) Call(method string, params, result interface{}) error {
	return c.CallContext(context.Background(), method, params, result)
}

// CallContext is Call bound to ctx. Transport failures are retried with
// back-off; errors reported by the server are returned immediately.
func (c *Client) CallContext(ctx context.Context, method string, params, result interface{}) error {
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	call := func() (*response, error) {
		return c.post(ctx, body)
	}
	rpcResp, err := retry.DoWithData(call,
		retry.Context(ctx),
		retry.Attempts(c.maxRetryTimes),
		retry.Delay(c.retryInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return err
	}

	if rpcResp.Error != nil {
		return newRPCError(rpcResp.Error)
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, body []byte) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Unrecoverable(fmt.Errorf("http status %d: %s", resp.StatusCode, bytes.TrimSpace(data)))
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
	}
	return &rpcResp, nil
}

func newRPCError(e *rpcError) *RPCError {
	out := &RPCError{Code: e.Code, Message: e.Message}
	if len(e.Data) > 0 {
		var data struct {
			Kind string `json:"kind"`
			Code string `json:"code"`
		}
		if json.Unmarshal(e.Data, &data) == nil {
			out.Kind = data.Kind
			out.Reason = data.Code
		}
	}
	return out
}
