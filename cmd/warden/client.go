package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"warden/daemon"
)

// apiClient talks to the daemon's unix-socket JSON API.
type apiClient struct {
	http *http.Client
}

func newAPIClient(socketPath string) *apiClient {
	return &apiClient{http: &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
		Timeout: 10 * time.Second,
	}}
}

func (c *apiClient) Status(ctx context.Context) (*daemon.StatusResponse, error) {
	var out daemon.StatusResponse
	if err := c.get(ctx, "/v1/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Containers(ctx context.Context) ([]daemon.ContainerResponse, error) {
	var out []daemon.ContainerResponse
	if err := c.get(ctx, "/v1/containers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) Events(ctx context.Context, limit int) ([]daemon.EventResponse, error) {
	var out []daemon.EventResponse
	if err := c.get(ctx, fmt.Sprintf("/v1/events?limit=%d", limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	// Host is ignored; the transport dials the unix socket.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://wardend"+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is wardend running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("daemon returned %s: %s", resp.Status, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
