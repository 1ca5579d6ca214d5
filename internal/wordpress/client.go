// Package wordpress reads event and category lists from the content
// backend's REST API.
package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cmscal/internal/config"
	"cmscal/internal/model"
)

// Client fetches the two lists the calendar is built from.
type Client struct {
	fetcher       *Fetcher
	eventsURL     string
	categoriesURL string
}

// NewClient builds a client from the source section of the config.
func NewClient(src config.SourceConfig) *Client {
	httpClient := &http.Client{Timeout: time.Duration(src.TimeoutSeconds) * time.Second}
	return &Client{
		fetcher:       NewFetcher(httpClient, src.CacheDir),
		eventsURL:     joinURL(src.BaseURL, src.EventsPath),
		categoriesURL: joinURL(src.BaseURL, src.CategoriesPath),
	}
}

// Events fetches the raw event records.
func (c *Client) Events(ctx context.Context) ([]model.RawEvent, error) {
	var out []model.RawEvent
	if err := c.getJSON(ctx, c.eventsURL, &out); err != nil {
		return nil, fmt.Errorf("wordpress: events: %w", err)
	}
	return out, nil
}

// Categories fetches the raw category records.
func (c *Client) Categories(ctx context.Context) ([]model.RawCategory, error) {
	var out []model.RawCategory
	if err := c.getJSON(ctx, c.categoriesURL, &out); err != nil {
		return nil, fmt.Errorf("wordpress: categories: %w", err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, u string, dst any) error {
	resp, err := c.fetcher.Get(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
