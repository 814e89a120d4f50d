// Package agent talks to the conversational-agent API. One inbound message
// produces at most MaxAttempts POSTs, guarded by a circuit breaker per agent.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrjocham/apihub/internal/config"
	"github.com/jrjocham/apihub/internal/metrics"
)

// NoResponse is returned as the reply when the agent answers without a
// message field.
const NoResponse = "No response from Nomi."

var (
	ErrCircuitOpen = errors.New("agent circuit open")
	ErrBadResponse = errors.New("agent response not decodable")
)

// StatusError is a non-2xx answer from the agent API.
type StatusError struct {
	AgentID string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent=%s status=%d body=%q", e.AgentID, e.Status, e.Body)
}

type Options struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	MaxAttempts   int
	BodyShape     string
	FailThreshold int
	OpenFor       time.Duration
}

// OptionsFrom maps the agent settings and API key onto client options.
func OptionsFrom(cfg config.AgentConfig, apiKey string) Options {
	return Options{
		Endpoint:      cfg.Endpoint,
		APIKey:        apiKey,
		Timeout:       cfg.Timeout,
		MaxAttempts:   cfg.MaxAttempts,
		BodyShape:     cfg.BodyShape,
		FailThreshold: cfg.Breaker.FailThreshold,
		OpenFor:       cfg.Breaker.OpenFor,
	}
}

type Client struct {
	endpoint    string
	apiKey      string
	bodyShape   string
	maxAttempts int
	client      *http.Client
	breakers    *breakerSet
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 2
	}

	if opts.FailThreshold <= 0 {
		opts.FailThreshold = 5
	}

	if opts.OpenFor <= 0 {
		opts.OpenFor = 30 * time.Second
	}

	if opts.BodyShape == "" {
		opts.BodyShape = config.BodyShapeFlat
	}

	return &Client{
		endpoint:    opts.Endpoint,
		apiKey:      opts.APIKey,
		bodyShape:   opts.BodyShape,
		maxAttempts: opts.MaxAttempts,
		client:      &http.Client{Timeout: opts.Timeout},
		breakers:    newBreakerSet(opts.FailThreshold, opts.OpenFor),
	}
}

// Send posts text to the agent and returns its reply. Transport errors, 429
// and 5xx are retried immediately up to the attempt limit; any other failure
// returns at once.
func (c *Client) Send(ctx context.Context, agentID, text string) (string, error) {
	br := c.breakers.get(agentID)
	if !br.Allow() {
		metrics.AgentRequestsTotal.WithLabelValues("circuit_open").Inc()
		return "", ErrCircuitOpen
	}

	reply, err := c.attempt(ctx, agentID, text)
	br.Record(err)
	metrics.AgentCircuitOpen.WithLabelValues(agentID).Set(gauge(br.Open()))

	return reply, err
}

func (c *Client) attempt(ctx context.Context, agentID, text string) (string, error) {
	var last error
	for i := 0; i < c.maxAttempts; i++ {
		reply, err := c.post(ctx, agentID, text)
		if err == nil {
			return reply, nil
		}

		last = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}

	return "", last
}

func gauge(open bool) float64 {
	if open {
		return 1
	}
	return 0
}

func (c *Client) post(ctx context.Context, agentID, text string) (string, error) {
	b, err := json.Marshal(c.requestBody(text))
	if err != nil {
		return "", err
	}

	endpoint := strings.ReplaceAll(c.endpoint, config.AgentIDPlaceholder, url.PathEscape(agentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := c.client.Do(req)
	metrics.AgentRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AgentRequestsTotal.WithLabelValues("transport_error").Inc()
		return "", err
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		metrics.AgentRequestsTotal.WithLabelValues("http_error").Inc()
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", &StatusError{AgentID: agentID, Status: res.StatusCode, Body: string(snippet)}
	}

	metrics.AgentRequestsTotal.WithLabelValues("ok").Inc()

	var out struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	reply, ok := replyText(out.Message)
	if !ok {
		return NoResponse, nil
	}

	return reply, nil
}

func (c *Client) requestBody(text string) any {
	if c.bodyShape == config.BodyShapeNested {
		return map[string]any{"message": map[string]string{"text": text}}
	}

	return map[string]string{"message": text}
}

// replyText accepts "message" either as a string or as {"text": "..."}. A
// present empty string is a reply; ok is false when there is no text field.
func replyText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}

	var obj struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Text != nil {
		return *obj.Text, true
	}

	return "", false
}

func retryable(err error) bool {
	if errors.Is(err, ErrBadResponse) || errors.Is(err, context.Canceled) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}

	return true
}
