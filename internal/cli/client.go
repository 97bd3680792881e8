package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hyperjump/kura/internal/models"
)

// Client talks to a running kura server.
type Client struct {
	http *resty.Client
}

type apiError struct {
	Error string `json:"error"`
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+"/api/v1").
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{http: c}
}

// Search runs a cross-source search.
func (c *Client) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	var out models.SearchResponse
	if err := c.do(ctx, http.MethodPost, "/search", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ask asks a question about one source.
func (c *Client) Ask(ctx context.Context, sourceID, question string) (*models.Answer, error) {
	var out models.Answer
	body := map[string]string{"question": question}
	if err := c.do(ctx, http.MethodPost, "/sources/"+sourceID+"/ask", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the server status document.
func (c *Client) Status(ctx context.Context) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := c.do(ctx, http.MethodGet, "/status", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// do sends one request. 400 and 404 responses come back as the matching
// models error so callers can test them the same way as local calls.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx).SetResult(out).SetError(&apiError{})
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("failed to call kura server: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	msg := resp.Status()
	if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
		msg = e.Error
	}
	switch resp.StatusCode() {
	case http.StatusBadRequest:
		return &models.ValidationError{Reason: msg}
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, models.ErrNotFound)
	default:
		return fmt.Errorf("kura server returned %d: %s", resp.StatusCode(), msg)
	}
}
