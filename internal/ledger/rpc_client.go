package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// RPC error codes the ledger returns for admission failures that are
// safe to resubmit.
const (
	rpcErrNonceContention = -32001
	rpcErrFeeTooLow       = -32002
)

// HTTPClient implements Client over HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum transport retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a ledger RPC client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call, retrying transport failures with
// exponential backoff. RPC-level errors are returned without retry; the
// caller decides what is transient.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}
		if rpcResp.Error != nil {
			switch rpcResp.Error.Code {
			case rpcErrNonceContention, rpcErrFeeTooLow:
				return fmt.Errorf("%s: %w", rpcResp.Error.Message, ErrTransient)
			}
			return rpcResp.Error
		}
		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// SubmitTransaction broadcasts the transaction and returns its id.
func (c *HTTPClient) SubmitTransaction(ctx context.Context, tx Transaction) (string, error) {
	params := []interface{}{
		base64.StdEncoding.EncodeToString(tx.Payload),
		map[string]interface{}{"fee": tx.Fee},
	}
	var result struct {
		Signature string `json:"signature"`
	}
	if err := c.call(ctx, "submitTransaction", params, &result); err != nil {
		return "", err
	}
	if result.Signature == "" {
		return "", fmt.Errorf("ledger returned empty transaction id")
	}
	return result.Signature, nil
}

// TransactionStatus returns what the ledger knows about txID.
func (c *HTTPClient) TransactionStatus(ctx context.Context, txID string) (*TxStatus, error) {
	var result struct {
		Slot      *int64  `json:"slot"`
		Confirmed bool    `json:"confirmed"`
		Err       *string `json:"err"`
	}
	if err := c.call(ctx, "getTransactionStatus", []interface{}{txID}, &result); err != nil {
		return nil, err
	}
	status := &TxStatus{}
	if result.Slot != nil {
		status.Found = true
		status.Slot = *result.Slot
		status.Confirmed = result.Confirmed
		if result.Err != nil {
			status.RevertReason = *result.Err
		}
	}
	return status, nil
}

// LatestSlot returns the ledger's current slot.
func (c *HTTPClient) LatestSlot(ctx context.Context) (int64, error) {
	var slot int64
	if err := c.call(ctx, "getLatestSlot", nil, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}
