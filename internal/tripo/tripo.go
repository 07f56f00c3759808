// Package tripo provides a client for the Tripo 3D generation API: task
// submission, status polling, format conversion, and model download.
package tripo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"genix/internal/gen"
)

const defaultBaseURL = "https://api.tripo3d.ai"

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

// Client calls the Tripo API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New constructs a client. The apiKey is required.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("tripo api key is required")
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

// GenerationParams are shared across the three generation modes.
type GenerationParams struct {
	ModelVersion    string
	TextureQuality  string
	GeometryQuality string
	FaceLimit       int // 0 leaves the provider default
	Texture         bool
	PBR             bool
}

// FileRef points at an uploaded input image.
type FileRef struct {
	Type  string `json:"type"`
	Token string `json:"file_token"`
}

// UploadImage uploads a local image and returns its file reference.
func (c *Client) UploadImage(ctx context.Context, p string) (FileRef, error) {
	f, err := os.Open(p)
	if err != nil {
		return FileRef{}, fmt.Errorf("open input image: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(p))
	if err != nil {
		return FileRef{}, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return FileRef{}, fmt.Errorf("read input image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return FileRef{}, fmt.Errorf("finish upload form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/openapi/upload", &buf)
	if err != nil {
		return FileRef{}, fmt.Errorf("build upload request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var data struct {
		ImageToken string `json:"image_token"`
	}
	if err := c.do(httpReq, &data); err != nil {
		return FileRef{}, err
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(p)), ".")
	if ext == "" {
		ext = "png"
	}
	return FileRef{Type: ext, Token: data.ImageToken}, nil
}

// TextToModel submits a text-to-3d generation task.
func (c *Client) TextToModel(ctx context.Context, prompt, negativePrompt string, params GenerationParams) (string, error) {
	payload := taskPayload("text_to_model", params)
	payload["prompt"] = prompt
	if negativePrompt != "" {
		payload["negative_prompt"] = negativePrompt
	}
	return c.submitTask(ctx, payload)
}

// ImageToModel submits an image-to-3d generation task.
func (c *Client) ImageToModel(ctx context.Context, file FileRef, params GenerationParams) (string, error) {
	payload := taskPayload("image_to_model", params)
	payload["file"] = file
	return c.submitTask(ctx, payload)
}

// MultiviewToModel submits a multiview-to-3d generation task. Files are in
// front, back, left, right order.
func (c *Client) MultiviewToModel(ctx context.Context, files []FileRef, params GenerationParams) (string, error) {
	payload := taskPayload("multiview_to_model", params)
	payload["files"] = files
	return c.submitTask(ctx, payload)
}

// ConvertModel submits a format-conversion task for a finished generation
// task.
func (c *Client) ConvertModel(ctx context.Context, originalTaskID, format string) (string, error) {
	payload := map[string]any{
		"type":                   "convert_model",
		"original_model_task_id": originalTaskID,
		"format":                 format,
	}
	return c.submitTask(ctx, payload)
}

// Task is the polled state of a Tripo task.
type Task struct {
	ID     string
	Job    gen.Job
	Output map[string]string // named download URLs
}

// Task fetches the current state of a task.
func (c *Client) Task(ctx context.Context, id string) (*Task, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/openapi/task/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("build task request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	var data struct {
		TaskID   string         `json:"task_id"`
		Status   string         `json:"status"`
		Progress int            `json:"progress"`
		Output   map[string]any `json:"output"`
	}
	if err := c.do(httpReq, &data); err != nil {
		return nil, err
	}

	task := &Task{
		ID:     data.TaskID,
		Output: map[string]string{},
		Job:    gen.Job{ID: data.TaskID, Progress: data.Progress},
	}
	for name, v := range data.Output {
		if s, ok := v.(string); ok && s != "" {
			task.Output[name] = s
		}
	}
	switch data.Status {
	case "queued":
		task.Job.Status = gen.StatusPending
	case "running":
		task.Job.Status = gen.StatusRunning
	case "success":
		task.Job.Status = gen.StatusSucceeded
	default:
		task.Job.Status = gen.StatusFailed
		task.Job.Err = fmt.Sprintf("task ended with status %q", data.Status)
	}
	return task, nil
}

// DownloadModels downloads every named output URL of a finished task into
// dir, keeping the URL's base filename, and returns name -> local path.
func (c *Client) DownloadModels(ctx context.Context, task *Task, dir string) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	downloaded := make(map[string]string, len(task.Output))
	for name, rawURL := range task.Output {
		local, err := c.downloadFile(ctx, rawURL, dir)
		if err != nil {
			return downloaded, err
		}
		downloaded[name] = local
	}
	return downloaded, nil
}

func (c *Client) downloadFile(ctx context.Context, rawURL, dir string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &gen.TransportError{Op: "tripo download", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &gen.ProviderError{
			Provider:   "tripo",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    "model download failed",
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		base = "model.glb"
	}
	local := filepath.Join(dir, base)
	f, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", local, err)
	}
	_, err = io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(local)
		return "", fmt.Errorf("write %s: %w", local, err)
	}
	return local, nil
}

func (c *Client) submitTask(ctx context.Context, payload map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode tripo request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/openapi/task", &buf)
	if err != nil {
		return "", fmt.Errorf("build tripo request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	var data struct {
		TaskID string `json:"task_id"`
	}
	if err := c.do(httpReq, &data); err != nil {
		return "", err
	}
	if data.TaskID == "" {
		return "", errors.New("tripo did not return a task id")
	}
	return data.TaskID, nil
}

// do executes the request and unwraps the {code, data} envelope, decoding
// data into out.
func (c *Client) do(httpReq *http.Request, out any) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &gen.TransportError{Op: "tripo request", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return &gen.ProviderError{
			Provider:   "tripo",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    strings.TrimSpace(string(errBody)),
		}
	}
	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode tripo response: %w", err)
	}
	if envelope.Code != 0 {
		return &gen.ProviderError{Provider: "tripo", Message: fmt.Sprintf("code %d: %s", envelope.Code, envelope.Message)}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode tripo data: %w", err)
		}
	}
	return nil
}

func taskPayload(taskType string, params GenerationParams) map[string]any {
	payload := map[string]any{
		"type":             taskType,
		"model_version":    params.ModelVersion,
		"texture":          params.Texture,
		"pbr":              params.PBR,
		"texture_quality":  params.TextureQuality,
		"geometry_quality": params.GeometryQuality,
	}
	if params.FaceLimit > 0 {
		payload["face_limit"] = params.FaceLimit
	}
	return payload
}
