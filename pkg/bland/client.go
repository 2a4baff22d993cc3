// Package bland is a client for the Bland AI telephony API: placing
// outbound calls, polling call status, and fetching transcripts. It does
// no retrying of its own — the dialer's poll loop owns retry semantics —
// but it marks retryable failures as transient so the loop can tell them
// apart from hard errors.
package bland

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/ivrmap/internal/resilience"
)

const defaultBaseURL = "https://api.bland.ai/v1"

// Client defines the Bland API operations used by the dialer.
type Client interface {
	SendCall(ctx context.Context, req SendCallRequest) (*SendCallResponse, error)
	GetCall(ctx context.Context, callID string) (*CallDetails, error)
	GetCorrectedTranscript(ctx context.Context, callID string) (*CorrectedTranscript, error)
}

// SendCallRequest is the request body for POST /calls.
type SendCallRequest struct {
	PhoneNumber        string `json:"phone_number"`
	Task               string `json:"task"`
	WaitForGreeting    bool   `json:"wait_for_greeting"`
	Record             bool   `json:"record"`
	VoicemailDetection bool   `json:"voicemail_detection"`
	MaxDuration        int    `json:"max_duration,omitempty"` // minutes
}

// SendCallResponse is the response from POST /calls.
type SendCallResponse struct {
	Status string `json:"status"`
	CallID string `json:"call_id"`
}

// TranscriptEntry is one structured utterance from a call.
type TranscriptEntry struct {
	ID   int    `json:"id"`
	User string `json:"user"`
	Text string `json:"text"`
}

// CallDetails is the response from GET /calls/{id}.
type CallDetails struct {
	CallID                 string            `json:"call_id"`
	Status                 string            `json:"status"`
	AnsweredBy             string            `json:"answered_by"`
	Price                  float64           `json:"price"`
	StartedAt              *time.Time        `json:"started_at"`
	EndedAt                *time.Time        `json:"end_at"`
	CallLength             float64           `json:"call_length"` // minutes
	ConcatenatedTranscript string            `json:"concatenated_transcript"`
	Transcripts            []TranscriptEntry `json:"transcripts"`
}

// AlignedEntry is one utterance from the corrected transcript endpoint.
type AlignedEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// CorrectedTranscript is the response from GET /calls/{id}/correct. It is
// produced by a slower alignment pass and preferred over the raw
// transcripts when available.
type CorrectedTranscript struct {
	Status  string         `json:"status"`
	Aligned []AlignedEntry `json:"aligned"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Bland API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SendCall(ctx context.Context, req SendCallRequest) (*SendCallResponse, error) {
	var resp SendCallResponse
	if err := c.do(ctx, http.MethodPost, "/calls", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) GetCall(ctx context.Context, callID string) (*CallDetails, error) {
	var resp CallDetails
	if err := c.do(ctx, http.MethodGet, "/calls/"+callID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) GetCorrectedTranscript(ctx context.Context, callID string) (*CorrectedTranscript, error) {
	var resp CorrectedTranscript
	if err := c.do(ctx, http.MethodGet, "/calls/"+callID+"/correct", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "bland: rate limit wait")
	}

	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return eris.Wrapf(err, "bland: marshal %s %s", method, path)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return eris.Wrapf(err, "bland: create request %s %s", method, path)
	}
	httpReq.Header.Set("Authorization", c.apiKey)
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "bland: send request %s %s", method, path), 0)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "bland: read response %s %s", method, path), resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := eris.Errorf("bland: %s %s: unexpected status %d: %s", method, path, resp.StatusCode, string(raw))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if err := json.Unmarshal(raw, respBody); err != nil {
		return eris.Wrapf(err, "bland: unmarshal response %s %s", method, path)
	}
	return nil
}

// Terminal reports whether a provider status string is final.
func Terminal(status string) bool {
	switch status {
	case "completed", "failed", "canceled", "cancelled":
		return true
	}
	return false
}
