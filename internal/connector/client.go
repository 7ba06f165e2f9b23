package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Config drives one connector process.
type Config struct {
	BaseURL  string        // e.g. http://localhost:8080
	Token    string        // minted via POST /api/v1/clusters/:id/tokens
	Name     string        // resource name to register under
	Type     string        // resource type tag, e.g. "node"
	Config   any           // free-form payload stored on the resource
	Interval time.Duration // heartbeat cadence
}

// Client registers a resource with the server and keeps it alive with
// heartbeats.
type Client struct {
	cfg        Config
	http       *http.Client
	log        *zap.Logger
	resourceID int64
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
}

// Register trades the connector token for a resource record.
func (c *Client) Register(ctx context.Context) error {
	payload := map[string]any{
		"token":  c.cfg.Token,
		"name":   c.cfg.Name,
		"type":   c.cfg.Type,
		"config": c.cfg.Config,
	}

	var out struct {
		Data struct {
			ResourceID int64 `json:"resource_id"`
			ClusterID  int64 `json:"cluster_id"`
			DomainID   int64 `json:"domain_id"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/api/v1/connectors/register", payload, &out); err != nil {
		return err
	}

	c.resourceID = out.Data.ResourceID
	c.log.Info("registered",
		zap.Int64("resource_id", out.Data.ResourceID),
		zap.Int64("cluster_id", out.Data.ClusterID),
		zap.Int64("domain_id", out.Data.DomainID),
	)
	return nil
}

// Heartbeat refreshes the resource's liveness.
func (c *Client) Heartbeat(ctx context.Context) error {
	payload := map[string]any{
		"token":       c.cfg.Token,
		"resource_id": c.resourceID,
	}
	return c.post(ctx, "/api/v1/connectors/heartbeat", payload, nil)
}

// Run registers and then heartbeats until the context is cancelled.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Register(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Heartbeat(ctx); err != nil {
				// Transient failures are expected; the next tick retries.
				c.log.Warn("heartbeat failed", zap.Error(err))
			}
		}
	}
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s: %s (status %d)", path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
