package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HealthStatus is the body of the health checks.
type HealthStatus struct {
	Status string `json:"status"`
	Data   struct {
		Service   string `json:"service,omitempty"`
		StartedAt string `json:"started_at,omitempty"`
		Uptime    string `json:"uptime,omitempty"`
		Latency   string `json:"latency,omitempty"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Healthy reports whether the check passed.
func (h *HealthStatus) Healthy() bool {
	return h.Status == "healthy"
}

// Health calls the liveness check.
func (c *Client) Health() (*HealthStatus, error) {
	return c.getHealth("/health")
}

// Ready calls the readiness check. An unready server is not an error; check
// Healthy.
func (c *Client) Ready() (*HealthStatus, error) {
	return c.getHealth("/health/ready")
}

func (c *Client) getHealth(path string) (*HealthStatus, error) {
	req, err := c.newRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	var hs HealthStatus
	if err := json.Unmarshal(body, &hs); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, parseError(resp.StatusCode, body)
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &hs, nil
}
