// Package jobservice is the HTTP adapter for the remote job-processing
// service. It only translates the wire contract; retry policy lives with
// the poller.
package jobservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"

	"tutor-chat-client/internal/config"
	"tutor-chat-client/internal/domain"
	"tutor-chat-client/internal/domain/ports/adapter"
)

var _ adapter.JobService = (*Client)(nil)

type Client struct {
	base string
	http *http.Client
	log  *zerolog.Logger
}

func NewClient(cfg *config.JobServiceConfig, log *zerolog.Logger) *Client {
	return &Client{
		base: cfg.BaseURL,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

func (c *Client) StartTurn(ctx context.Context, req adapter.StartTurnRequest) (*adapter.StartTurnResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/start", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStartFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrStartFailed, resp.StatusCode)
	}
	var out adapter.StartTurnResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrStartFailed, err)
	}
	return &out, nil
}

func (c *Client) JobStatus(ctx context.Context, jobID string) (*adapter.JobStatusResponse, error) {
	u := fmt.Sprintf("%s/status?job_id=%s", c.base, url.QueryEscape(jobID))
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, &adapter.TransientError{Op: "status", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrJobNotFound
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, &adapter.TransientError{Op: "status", StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status call: unexpected status %d", resp.StatusCode)
	}
	var out adapter.JobStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &adapter.TransientError{Op: "status", Err: err}
	}
	return &out, nil
}

func (c *Client) FetchHistory(ctx context.Context, sessionID string) ([]adapter.HistoryMessage, error) {
	u := fmt.Sprintf("%s/history?session_id=%s", c.base, url.QueryEscape(sessionID))
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, &adapter.TransientError{Op: "history", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("history call: unexpected status %d", resp.StatusCode)
	}
	var out []adapter.HistoryMessage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
