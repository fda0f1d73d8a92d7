package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes caps how much of a gateway reply is read.
const maxResponseBytes = 1 << 20

// HTTPOptions configures NewHTTP.
type HTTPOptions struct {
	// URL receives POST {"kind": ..., "prompt": ...}.
	URL string
	// Token, if set, is sent as a bearer token.
	Token string
	// Timeout bounds one consultation. Default 30s.
	Timeout time.Duration
	// Client defaults to a client with Timeout.
	Client *http.Client
}

// HTTPAdvisor forwards prompts to an assistant gateway over HTTP/JSON. The
// gateway answers {"text": "<markdown>"}.
type HTTPAdvisor struct {
	url    string
	token  string
	client *http.Client
}

type adviseRequest struct {
	Kind   string `json:"kind"`
	Prompt string `json:"prompt"`
}

type adviseResponse struct {
	Text string `json:"text"`
}

// NewHTTP returns an Advisor backed by the gateway at opts.URL.
func NewHTTP(opts HTTPOptions) *HTTPAdvisor {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPAdvisor{url: opts.URL, token: opts.Token, client: client}
}

// Advise implements Advisor.
func (a *HTTPAdvisor) Advise(ctx context.Context, kind Kind, prompt string) (string, error) {
	body, err := json.Marshal(adviseRequest{Kind: kind.String(), Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call advisor: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read advisor response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("advisor returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var out adviseResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode advisor response: %w", err)
	}
	return out.Text, nil
}
