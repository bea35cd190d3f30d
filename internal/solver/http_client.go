package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"auction-engine/internal/domain"
)

// DefaultTimeout caps a single solve call when the caller's context has
// no earlier deadline.
const DefaultTimeout = 15 * time.Second

// HTTPSolver implements Solver against an external engine's /solve
// endpoint. One call per round; the round deadline arrives through the
// context, so the client itself never retries.
type HTTPSolver struct {
	name    string
	account domain.Address
	merge   bool

	endpoint string
	client   *http.Client
}

// HTTPOption configures HTTPSolver.
type HTTPOption func(*HTTPSolver)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSolver) {
		s.client = client
	}
}

// NewHTTPSolver creates a solver client for the engine at endpoint.
func NewHTTPSolver(name string, account domain.Address, endpoint string, merge bool, opts ...HTTPOption) *HTTPSolver {
	s := &HTTPSolver{
		name:     name,
		account:  account,
		merge:    merge,
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Solver = (*HTTPSolver)(nil)

func (s *HTTPSolver) Name() string            { return s.name }
func (s *HTTPSolver) Account() domain.Address { return s.account }
func (s *HTTPSolver) MergeSolutions() bool    { return s.merge }

// Solve posts the auction and decodes the response. Any transport,
// protocol, or decode failure is returned as an error; the dispatcher
// turns it into "no solution" for the round.
func (s *HTTPSolver) Solve(ctx context.Context, auction *domain.Auction) (*domain.Solution, error) {
	deadlineMs := int64(0)
	if dl, ok := ctx.Deadline(); ok {
		deadlineMs = dl.UnixMilli()
	}

	body, err := json.Marshal(encodeAuction(auction, deadlineMs))
	if err != nil {
		return nil, fmt.Errorf("marshal auction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/solve", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded solveResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if decoded.Solution == nil {
		return nil, nil
	}

	solution, err := decodeSolution(decoded.Solution)
	if err != nil {
		return nil, fmt.Errorf("decode solution: %w", err)
	}
	return solution, nil
}
