// Package client talks to a running proxy over HTTP.
package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/raine/katazuke-proxy/internal/advisor"
	"github.com/raine/katazuke-proxy/internal/cleanup"
	"github.com/raine/katazuke-proxy/internal/quota"
)

const DefaultBaseURL = "http://localhost:3001"

type ClientOpts struct {
	BaseURL string
	// Language is sent as Accept-Language.
	Language string
	Timeout  time.Duration
}

type Client struct {
	httpClient *resty.Client
}

// APIError is a non-2xx answer from the proxy.
type APIError struct {
	Status     int          `json:"-"`
	Message    string       `json:"error"`
	Code       string       `json:"code"`
	Suggestion string       `json:"suggestion"`
	RetryAfter int          `json:"retryAfter"`
	Usage      quota.Status `json:"usage"`
	AIResponse string       `json:"aiResponse"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("proxy returned %d: %s", e.Status, e.Message)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %ds)", e.RetryAfter)
	}
	return msg
}

func NewClient(opts ClientOpts) *Client {
	baseURL := DefaultBaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	httpClient := resty.New().
		SetDebug(false).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if opts.Language != "" {
		httpClient.SetHeader("Accept-Language", opts.Language)
	}
	return &Client{httpClient: httpClient}
}

func (c *Client) req(ctx context.Context, result any) *resty.Request {
	request := c.httpClient.
		NewRequest().
		SetContext(ctx).
		SetError(&APIError{})
	if result != nil {
		request.SetResult(result)
	}
	return request
}

// handleError turns failing responses (>399 status code) into *APIError.
// Without this, failing responses would have nil error.
func handleError(res *resty.Response, err error) (*resty.Response, error) {
	if err != nil {
		return res, err
	}
	if res.IsError() {
		apiErr, ok := res.Error().(*APIError)
		if !ok || apiErr.Message == "" {
			apiErr = &APIError{Message: res.Status()}
		}
		apiErr.Status = res.StatusCode()
		return res, apiErr
	}
	return res, nil
}

func imagePayload(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

type EditParams struct {
	Image       []byte
	MIMEType    string
	EditType    string
	HighQuality bool
}

type EditResponse struct {
	Success        bool          `json:"success"`
	ImageBase64    string        `json:"imageBase64"`
	ImageURL       string        `json:"imageUrl"`
	Model          string        `json:"model"`
	UsedFallback   bool          `json:"usedFallback"`
	FallbackReason *string       `json:"fallbackReason"`
	Usage          quota.Status  `json:"usage"`
	Debug          cleanup.Debug `json:"debug"`
}

// Image decodes the returned image.
func (r *EditResponse) Image() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.ImageBase64)
}

// Edit requests a before/after cleanup of the image.
func (c *Client) Edit(ctx context.Context, params EditParams) (*EditResponse, error) {
	result := &EditResponse{}
	_, err := handleError(c.req(ctx, result).
		SetBody(map[string]any{
			"imageBase64": imagePayload(params.Image, params.MIMEType),
			"editType":    params.EditType,
			"highQuality": params.HighQuality,
		}).
		Post("/api/gemini/edit-image"))
	if err != nil {
		return nil, err
	}
	return result, nil
}

type usageResponse struct {
	Usage quota.Status `json:"usage"`
}

// Usage returns the proxy's quota snapshot.
func (c *Client) Usage(ctx context.Context) (quota.Status, error) {
	result := &usageResponse{}
	if _, err := handleError(c.req(ctx, result).Get("/api/usage")); err != nil {
		return nil, err
	}
	return result.Usage, nil
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	result := &HealthResponse{}
	if _, err := handleError(c.req(ctx, result).Get("/api/health")); err != nil {
		return nil, err
	}
	return result, nil
}

type SpotsResponse struct {
	Spots              []advisor.Spot `json:"spots"`
	TotalEstimatedTime string         `json:"totalEstimatedTime"`
	Encouragement      string         `json:"encouragement"`
	RawText            string         `json:"rawText"`
}

// CleanupSpots asks for micro tidying tasks for the image.
func (c *Client) CleanupSpots(ctx context.Context, image []byte, mimeType string) (*SpotsResponse, error) {
	result := &SpotsResponse{}
	_, err := handleError(c.req(ctx, result).
		SetBody(map[string]any{"imageBase64": imagePayload(image, mimeType)}).
		Post("/api/analyze-cleanup-spots"))
	if err != nil {
		return nil, err
	}
	return result, nil
}
