package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"sat-practice-service/internal/domain"
)

// Client talks to the automation webhooks: explanation generation, content
// reports, and question submissions. Failures surface as plain errors the
// user retries by re-invoking; there is no retry policy here.
type Client struct {
	http    *resty.Client
	explain string
	report  string
	submit  string
}

// Endpoints configures the three webhook URLs. Empty URLs disable the
// corresponding call.
type Endpoints struct {
	Explain string
	Report  string
	Submit  string
}

func NewClient(endpoints Endpoints, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:    resty.New().SetTimeout(timeout),
		explain: endpoints.Explain,
		report:  endpoints.Report,
		submit:  endpoints.Submit,
	}
}

// Explain posts the displayed question layout and returns the rationale text.
// The webhook responds with a JSON array; the first element's "output" field
// carries the explanation.
func (c *Client) Explain(ctx context.Context, req domain.ExplanationRequest) (string, error) {
	if c.explain == "" {
		return "", fmt.Errorf("explanation webhook not configured")
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.explain)
	if err != nil {
		return "", fmt.Errorf("fetch explanation: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("fetch explanation: webhook returned %s", resp.Status())
	}

	var out []struct {
		Output string `json:"output"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode explanation: %w", err)
	}
	if len(out) == 0 || out[0].Output == "" {
		return "No explanation available", nil
	}
	return out[0].Output, nil
}

// Report forwards a content-issue report for manual review.
func (c *Client) Report(ctx context.Context, report domain.Report) error {
	if c.report == "" {
		return fmt.Errorf("report webhook not configured")
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(report).
		Post(c.report)
	if err != nil {
		return fmt.Errorf("submit report: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("submit report: webhook returned %s", resp.Status())
	}
	return nil
}

// SubmitQuestion forwards a free-text question submission.
func (c *Client) SubmitQuestion(ctx context.Context, text string) error {
	if c.submit == "" {
		return fmt.Errorf("submission webhook not configured")
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"text": text}).
		Post(c.submit)
	if err != nil {
		return fmt.Errorf("submit question: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("submit question: webhook returned %s", resp.Status())
	}
	return nil
}
