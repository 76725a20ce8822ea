package graphmem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the external knowledge-graph memory service over
// HTTP. Transport and auth details beyond a base URL are the service's
// concern; every non-2xx response surfaces as a plain error since the
// delivery scheduler treats all failures identically.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type addMessagesRequest struct {
	GroupID  string    `json:"group_id"`
	Messages []Message `json:"messages"`
}

// AddMessages appends a batch of messages to the given group.
func (c *Client) AddMessages(ctx context.Context, groupID string, messages []Message) error {
	var out StatusResponse
	err := c.post(ctx, "/messages", addMessagesRequest{GroupID: groupID, Messages: messages}, &out)
	if err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("add messages rejected: %s", out.Message)
	}
	return nil
}

type searchRequest struct {
	Query    string   `json:"query"`
	GroupIDs []string `json:"group_ids"`
	MaxFacts int      `json:"max_facts"`
}

type searchResponse struct {
	Facts []Fact `json:"facts"`
}

// Search returns up to maxFacts facts relevant to the query across the
// given groups.
func (c *Client) Search(ctx context.Context, query string, groupIDs []string, maxFacts int) ([]Fact, error) {
	var out searchResponse
	if err := c.post(ctx, "/search", searchRequest{Query: query, GroupIDs: groupIDs, MaxFacts: maxFacts}, &out); err != nil {
		return nil, err
	}
	return out.Facts, nil
}

type episodesResponse struct {
	Episodes []Episode `json:"episodes"`
}

// GetEpisodes returns the last n ingested messages for a group.
func (c *Client) GetEpisodes(ctx context.Context, groupID string, lastN int) ([]Episode, error) {
	path := "/episodes/" + url.PathEscape(groupID) + "?last_n=" + strconv.Itoa(lastN)
	var out episodesResponse
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Episodes, nil
}

// DeleteGroup removes all stored memory for a group.
func (c *Client) DeleteGroup(ctx context.Context, groupID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/group/"+url.PathEscape(groupID), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	var out StatusResponse
	return c.do(req, &out)
}

// Healthcheck probes the service.
func (c *Client) Healthcheck(ctx context.Context) error {
	return c.get(ctx, "/healthcheck", nil)
}

type resolveGroupIDRequest struct {
	Scope string `json:"scope"`
	Key   string `json:"key"`
}

type resolveGroupIDResponse struct {
	GroupID string `json:"group_id"`
}

// ResolveGroupID asks the service which group a scope/key pair maps to.
// Diagnostic use only; the pipeline derives group IDs locally.
func (c *Client) ResolveGroupID(ctx context.Context, scopeName, key string) (string, error) {
	var out resolveGroupIDResponse
	if err := c.post(ctx, "/group/resolve", resolveGroupIDRequest{Scope: scopeName, Key: key}, &out); err != nil {
		return "", err
	}
	return out.GroupID, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("memory service call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return fmt.Errorf("memory service returned %d: %s", resp.StatusCode, msg)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
