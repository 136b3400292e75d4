// Package a2aclient implements the orchestrator-side client for the A2A
// protocol: agent card discovery with an in-process cache, task submission
// and polling, and per-endpoint circuit breaking.
package a2aclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/trademesh/trademesh/internal/domain"
	"github.com/trademesh/trademesh/internal/domain/task"
	"github.com/trademesh/trademesh/internal/port/a2a"
	"github.com/trademesh/trademesh/internal/resilience"
)

// Config tunes the client's timeouts, card cache, and circuit breaker.
type Config struct {
	RequestTimeout  time.Duration
	CardCacheBytes  int64
	CardCacheTTL    time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// errDecode marks a response body that could not be decoded. Discover
// upgrades it to a malformed-card error; everywhere else it stays internal.
var errDecode = errors.New("decode response")

// Client talks to remote agents over the A2A protocol.
type Client struct {
	httpClient *http.Client
	cards      *ristretto.Cache[string, a2a.AgentCard]
	cardTTL    time.Duration
	breakers   *resilience.Group
	log        *slog.Logger
}

// New creates an A2A client.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.CardCacheBytes <= 0 {
		cfg.CardCacheBytes = 1 << 20
	}
	if cfg.CardCacheTTL <= 0 {
		cfg.CardCacheTTL = time.Minute
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	cards, err := ristretto.NewCache(&ristretto.Config[string, a2a.AgentCard]{
		NumCounters: cfg.CardCacheBytes / 100 * 10, // ~10x expected items
		MaxCost:     cfg.CardCacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create card cache: %w", err)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cards:      cards,
		breakers:   resilience.NewGroup(cfg.BreakerFailures, cfg.BreakerTimeout),
		log:        log,
		cardTTL:    cfg.CardCacheTTL,
	}, nil
}

// Discover fetches the agent card from the well-known path, serving cached
// cards while the TTL holds.
func (c *Client) Discover(ctx context.Context, endpoint string) (a2a.AgentCard, error) {
	if card, ok := c.cards.Get(endpoint); ok {
		return card, nil
	}

	var card a2a.AgentCard
	err := c.execute(endpoint, func() error {
		return c.doJSON(ctx, http.MethodGet, endpoint+"/.well-known/agent.json", nil, &card)
	})
	if errors.Is(err, errDecode) {
		return a2a.AgentCard{}, fmt.Errorf("%w: %v", domain.ErrMalformedCard, err)
	}
	if err != nil {
		return a2a.AgentCard{}, err
	}
	if card.Name == "" && len(card.Capabilities) == 0 {
		return a2a.AgentCard{}, fmt.Errorf("%w: empty card from %s", domain.ErrMalformedCard, endpoint)
	}

	c.cards.SetWithTTL(endpoint, card, int64(len(card.Name))+64, c.cardTTL)
	c.cards.Wait()
	c.log.Debug("agent card cached", "endpoint", endpoint, "capabilities", len(card.Capabilities))
	return card, nil
}

// Close releases the card cache.
func (c *Client) Close() {
	c.cards.Close()
}

// execute runs fn under the endpoint's circuit breaker. An open breaker is
// an unreachable endpoint as far as callers are concerned.
func (c *Client) execute(endpoint string, fn func() error) error {
	err := c.breakers.Execute(endpoint, fn)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("%w: %w", domain.ErrUnreachable, err)
	}
	return err
}

// Submit creates a task on the remote agent.
func (c *Client) Submit(ctx context.Context, endpoint string, req a2a.CreateTaskRequest) (*task.Task, error) {
	var t task.Task
	err := c.execute(endpoint, func() error {
		return c.doJSON(ctx, http.MethodPost, endpoint+"/api/v1/tasks", req, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTask fetches a task snapshot from the remote agent.
func (c *Client) GetTask(ctx context.Context, endpoint, id string) (*task.Task, error) {
	var t task.Task
	err := c.execute(endpoint, func() error {
		return c.doJSON(ctx, http.MethodGet, endpoint+"/api/v1/tasks/"+id, nil, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CancelTask marks the remote task canceled.
func (c *Client) CancelTask(ctx context.Context, endpoint, id string) (*task.Task, error) {
	var t task.Task
	err := c.execute(endpoint, func() error {
		return c.doJSON(ctx, http.MethodDelete, endpoint+"/api/v1/tasks/"+id, nil, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SendMessage appends a message to the remote task's exchange log.
func (c *Client) SendMessage(ctx context.Context, endpoint, taskID string, req a2a.SendMessageRequest) (*task.Message, error) {
	var msg task.Message
	err := c.execute(endpoint, func() error {
		return c.doJSON(ctx, http.MethodPost, endpoint+"/api/v1/tasks/"+taskID+"/messages", req, &msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages fetches the remote task's messages.
func (c *Client) ListMessages(ctx context.Context, endpoint, taskID string) ([]task.Message, error) {
	var msgs []task.Message
	err := c.execute(endpoint, func() error {
		return c.doJSON(ctx, http.MethodGet, endpoint+"/api/v1/tasks/"+taskID+"/messages", nil, &msgs)
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// AwaitCompletion polls the remote task at the given interval until it
// reaches a terminal state, the timeout expires, or ctx is canceled. The
// remote task may still complete after the caller stops waiting.
func (c *Client) AwaitCompletion(ctx context.Context, endpoint, id string, interval, timeout time.Duration) (*task.Task, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		t, err := c.GetTask(ctx, endpoint, id)
		if err != nil {
			return nil, err
		}
		if t.Status.IsTerminal() {
			return t, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("%w: task %s still %s after %s", domain.ErrTimeout, id, t.Status, timeout)
		case <-ticker.C:
		}
	}
}

// doJSON performs one HTTP exchange, mapping transport and status failures
// to domain error kinds.
func (c *Client) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return mapStatusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w from %s: %v", errDecode, url, err)
		}
	}
	return nil
}

func mapStatusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case resp.StatusCode == http.StatusBadRequest && strings.Contains(msg, "capability"):
		return fmt.Errorf("%w: %s", domain.ErrCapabilityNotSupported, msg)
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrValidation, msg)
	default:
		return fmt.Errorf("agent returned %d: %s", resp.StatusCode, msg)
	}
}
