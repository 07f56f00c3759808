// Package google provides a thin client for the Gemini generative media
// REST APIs: Gemini 3 Pro Image generation and Veo video generation.
package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"genix/internal/gen"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"

	// ImageModel is the Gemini 3 Pro Image preview model.
	ImageModel = "gemini-3-pro-image-preview"
)

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client calls the generative language API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New constructs a client. The apiKey is required.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("google api key is required")
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// InlineImage is an input image passed alongside the prompt.
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// ImageRequest generates an image from a prompt and optional input images.
type ImageRequest struct {
	Prompt      string
	Images      []InlineImage
	AspectRatio string
	Resolution  string // 1K, 2K, 4K
}

// ImageResult is the generated image plus any interleaved model text.
type ImageResult struct {
	Text string
	Data []byte
}

// GenerateImage renders the prompt with the Gemini image model.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	parts := []map[string]any{{"text": req.Prompt}}
	for _, img := range req.Images {
		parts = append(parts, map[string]any{
			"inlineData": map[string]any{
				"mimeType": img.MIMEType,
				"data":     base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	body := map[string]any{
		"contents": []map[string]any{{"parts": parts}},
		"generationConfig": map[string]any{
			"responseModalities": []string{"TEXT", "IMAGE"},
			"imageConfig": map[string]any{
				"aspectRatio":    req.AspectRatio,
				"imageSize":      strings.ToUpper(req.Resolution),
				"outputMimeType": "image/png",
			},
		},
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text       string `json:"text"`
					InlineData struct {
						MIMEType string `json:"mimeType"`
						Data     string `json:"data"`
					} `json:"inlineData"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", ImageModel)
	if err := c.postJSON(ctx, path, body, &resp); err != nil {
		return nil, err
	}

	res := &ImageResult{}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				text.WriteString(part.Text)
			}
			if part.InlineData.Data != "" {
				data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("decode image payload: %w", err)
				}
				res.Data = data
			}
		}
	}
	res.Text = text.String()
	if len(res.Data) == 0 {
		return nil, errors.New("google returned no image data")
	}
	return res, nil
}

// VideoRequest starts a Veo generation operation.
type VideoRequest struct {
	Prompt          string
	Model           string
	AspectRatio     string
	DurationSeconds int
	Resolution      string
	NegativePrompt  string
	Seed            *int64
	Image           *InlineImage // optional first frame
}

// StartVideo submits the long-running operation and returns its name.
func (c *Client) StartVideo(ctx context.Context, req VideoRequest) (string, error) {
	instance := map[string]any{"prompt": req.Prompt}
	if req.Image != nil {
		instance["image"] = map[string]any{
			"bytesBase64Encoded": base64.StdEncoding.EncodeToString(req.Image.Data),
			"mimeType":           req.Image.MIMEType,
		}
	}
	params := map[string]any{
		"aspectRatio":     req.AspectRatio,
		"durationSeconds": req.DurationSeconds,
		"resolution":      req.Resolution,
	}
	if req.NegativePrompt != "" {
		params["negativePrompt"] = req.NegativePrompt
	}
	if req.Seed != nil {
		params["seed"] = *req.Seed
	}
	body := map[string]any{
		"instances":  []map[string]any{instance},
		"parameters": params,
	}

	var resp struct {
		Name string `json:"name"`
	}
	path := fmt.Sprintf("/v1beta/models/%s:predictLongRunning", req.Model)
	if err := c.postJSON(ctx, path, body, &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", errors.New("google did not return an operation name")
	}
	return resp.Name, nil
}

// Operation is the polled state of a Veo generation.
type Operation struct {
	Name     string
	Done     bool
	ErrMsg   string
	VideoURI string
}

// VideoOperation fetches the current operation state.
func (c *Client) VideoOperation(ctx context.Context, name string) (*Operation, error) {
	var resp struct {
		Name  string `json:"name"`
		Done  bool   `json:"done"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Response struct {
			GenerateVideoResponse struct {
				GeneratedSamples []struct {
					Video struct {
						URI string `json:"uri"`
					} `json:"video"`
				} `json:"generatedSamples"`
			} `json:"generateVideoResponse"`
		} `json:"response"`
	}
	if err := c.getJSON(ctx, "/v1beta/"+name, &resp); err != nil {
		return nil, err
	}
	op := &Operation{Name: resp.Name, Done: resp.Done, ErrMsg: resp.Error.Message}
	samples := resp.Response.GenerateVideoResponse.GeneratedSamples
	if len(samples) > 0 {
		op.VideoURI = samples[0].Video.URI
	}
	return op, nil
}

// DownloadVideo streams the generated video from its URI.
func (c *Client) DownloadVideo(ctx context.Context, uri string) (io.ReadCloser, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &gen.TransportError{Op: "google video download", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.apiError(resp)
	}
	return resp.Body, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return fmt.Errorf("encode google request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, &buf, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build google request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &gen.TransportError{Op: "google request", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode google response: %w", err)
	}
	return nil
}

func (c *Client) apiError(resp *http.Response) error {
	errBody, _ := io.ReadAll(resp.Body)
	return &gen.ProviderError{
		Provider:   "google",
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    strings.TrimSpace(string(errBody)),
	}
}
