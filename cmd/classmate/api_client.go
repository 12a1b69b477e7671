package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fentz26/classmate/internal/controlplane"
	"github.com/fentz26/classmate/internal/tui"
)

// newClient returns an API client for the selected user.
func newClient() *tui.Client {
	return tui.NewClient(resolveAPI(), userID)
}

var healthClient = &http.Client{Timeout: 2 * time.Second}

// checkHealth returns the parsed health payload alongside any error, so
// callers can inspect a degraded daemon.
func checkHealth(addr string) (*controlplane.HealthResponse, error) {
	resp, err := healthClient.Get(addr + "/health")
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var health controlplane.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &health, fmt.Errorf("health check failed (status %d): %s", resp.StatusCode, health.DB)
	}
	return &health, nil
}
