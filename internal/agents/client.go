package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"callcenter-analytics/internal/apperr"
	"callcenter-analytics/pkg/retry"
)

// Agent is the subset of the directory's agent model the service needs.
type Agent struct {
	ID   string `json:"agent_id"`
	Name string `json:"name"`
}

// Client talks to the voice-agent provider's directory API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	policy  retry.Policy
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 5 * time.Second},
		policy: retry.Policy{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    time.Second,
			Retryable:   apperr.IsRetryable,
		},
	}
}

// Agent fetches one agent record by id. Unknown ids are not-found; 5xx and
// network failures are retried with backoff before giving up.
func (c *Client) Agent(ctx context.Context, agentID string) (Agent, error) {
	if agentID == "" {
		return Agent{}, apperr.Validation("agentId is required")
	}

	var agent Agent
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		got, err := c.fetch(ctx, agentID)
		if err != nil {
			return err
		}
		agent = got
		return nil
	})
	return agent, err
}

// AgentName satisfies the ingestion pipeline's directory interface.
func (c *Client) AgentName(ctx context.Context, agentID string) (string, error) {
	agent, err := c.Agent(ctx, agentID)
	if err != nil {
		return "", err
	}
	return agent.Name, nil
}

func (c *Client) fetch(ctx context.Context, agentID string) (Agent, error) {
	endpoint := fmt.Sprintf("%s/v1/convai/agents/%s", c.baseURL, url.PathEscape(agentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Agent{}, apperr.Wrap(apperr.KindInternal, "build directory request", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Agent{}, apperr.Wrap(apperr.KindTransient, "agent directory unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return Agent{}, apperr.NotFound("Agent not found")
	case resp.StatusCode >= http.StatusInternalServerError:
		return Agent{}, apperr.New(apperr.KindTransient, fmt.Sprintf("agent directory returned %d", resp.StatusCode))
	default:
		return Agent{}, apperr.New(apperr.KindInternal, fmt.Sprintf("agent directory returned %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Agent{}, apperr.Wrap(apperr.KindTransient, "read directory response", err)
	}
	var agent Agent
	if err := json.Unmarshal(body, &agent); err != nil {
		return Agent{}, apperr.Wrap(apperr.KindInternal, "decode directory response", err)
	}
	return agent, nil
}
