// Package orchestrator handles relax-mode commands: delegation to an
// upstream agent hub when one is configured, and local fallback agents
// when the hub is absent, unreachable, or confused.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Sentinel errors for hub delegation
var (
	// ErrHubUnavailable means the hub is not configured, unreachable, or
	// returned a non-success response. The caller falls back locally.
	ErrHubUnavailable = errors.New("agent hub unavailable")

	// ErrHubConfused means the hub answered but could not interpret the
	// command. Treated the same as unavailable: fall back locally.
	ErrHubConfused = errors.New("agent hub confused")
)

// Answer is one orchestrated agent response
type Answer struct {
	Agent  string `json:"agent"`
	Result string `json:"result"`
	Status string `json:"status"`
}

// Orchestrator handles one relax-mode command for a tenant
type Orchestrator interface {
	Execute(ctx context.Context, tenantID, command string) (*Answer, error)
}

type hubResponse struct {
	Success bool   `json:"success"`
	Data    Answer `json:"data"`
}

// HubClient delegates relax commands to the upstream agent hub. One attempt
// per command, bounded by the client timeout; retries would double-run agent
// side effects.
type HubClient struct {
	client *resty.Client
}

// NewHubClient creates a hub client for the given base URL
func NewHubClient(baseURL string, timeout time.Duration) *HubClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &HubClient{client: client}
}

// Execute posts the command to the hub and returns its answer. Any transport
// failure, non-2xx status, unsuccessful envelope, or confused answer is an
// error so the caller can fall back.
func (h *HubClient) Execute(ctx context.Context, tenantID, command string) (*Answer, error) {
	var parsed hubResponse

	resp, err := h.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"command":  command,
			"tenantId": tenantID,
		}).
		SetResult(&parsed).
		Post("/api/agents/execute")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHubUnavailable, err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("%w: hub returned status %d", ErrHubUnavailable, resp.StatusCode())
	}

	if !parsed.Success {
		return nil, fmt.Errorf("%w: hub reported failure", ErrHubUnavailable)
	}

	if parsed.Data.Status == "confused" {
		return nil, fmt.Errorf("%w: command %q", ErrHubConfused, truncateCommand(command))
	}

	answer := parsed.Data
	return &answer, nil
}

func truncateCommand(command string) string {
	const max = 50
	if len(command) <= max {
		return command
	}
	return command[:max] + "..."
}
