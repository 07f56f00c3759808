// Package dashscope provides clients for the DashScope Qwen audio APIs:
// voice customization (clone and design) over REST and realtime
// text-to-speech over WebSocket.
package dashscope

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
	defaultCustomizationURL = "https://dashscope.aliyuncs.com/api/v1/services/audio/tts/customization"

	// EnrollmentModel handles voice-clone actions.
	EnrollmentModel = "qwen-voice-enrollment"
	// DesignModel handles voice-design actions.
	DesignModel = "qwen-voice-design"
)

// ClientOption configures the customization client.
type ClientOption func(*Client)

// WithEndpoint overrides the customization endpoint URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client calls the DashScope voice customization API.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewClient constructs a customization client. The apiKey is required.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("dashscope api key is required")
	}
	c := &Client{
		apiKey:   apiKey,
		endpoint: defaultCustomizationURL,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CloneRequest enrolls a new cloned voice from reference audio.
type CloneRequest struct {
	AudioDataURI  string // data:<mime>;base64,<payload>
	PreferredName string
	TargetModel   string
	Language      string // optional
	Text          string // optional transcript
}

// CreateClonedVoice enrolls the voice and returns its assigned name.
func (c *Client) CreateClonedVoice(ctx context.Context, req CloneRequest) (string, error) {
	input := map[string]any{
		"action":         "create",
		"target_model":   req.TargetModel,
		"preferred_name": req.PreferredName,
		"audio":          map[string]any{"data": req.AudioDataURI},
	}
	if req.Language != "" {
		input["language"] = req.Language
	}
	if req.Text != "" {
		input["text"] = req.Text
	}
	var out struct {
		Voice string `json:"voice"`
	}
	if err := c.post(ctx, EnrollmentModel, input, nil, &out); err != nil {
		return "", err
	}
	if out.Voice == "" {
		return "", errors.New("dashscope did not return a voice name")
	}
	return out.Voice, nil
}

// DesignRequest creates a custom voice from a textual description.
type DesignRequest struct {
	VoicePrompt   string
	PreviewText   string
	PreferredName string // optional
	TargetModel   string
	Language      string
	SampleRate    int
	Format        string
}

// DesignResult is the created voice plus its decoded preview audio.
type DesignResult struct {
	Voice        string
	PreviewAudio []byte
}

// DesignVoice creates the voice and returns the preview audio when the API
// supplies one.
func (c *Client) DesignVoice(ctx context.Context, req DesignRequest) (*DesignResult, error) {
	input := map[string]any{
		"action":       "create",
		"target_model": req.TargetModel,
		"voice_prompt": req.VoicePrompt,
		"preview_text": req.PreviewText,
		"language":     req.Language,
	}
	if req.PreferredName != "" {
		input["preferred_name"] = req.PreferredName
	}
	params := map[string]any{
		"sample_rate":     req.SampleRate,
		"response_format": req.Format,
	}
	var out struct {
		Voice        string `json:"voice"`
		PreviewAudio struct {
			Data string `json:"data"`
		} `json:"preview_audio"`
	}
	if err := c.post(ctx, DesignModel, input, params, &out); err != nil {
		return nil, err
	}
	if out.Voice == "" {
		return nil, errors.New("dashscope did not return a voice name")
	}
	res := &DesignResult{Voice: out.Voice}
	if out.PreviewAudio.Data != "" {
		audio, err := base64.StdEncoding.DecodeString(out.PreviewAudio.Data)
		if err != nil {
			return nil, fmt.Errorf("decode preview audio: %w", err)
		}
		res.PreviewAudio = audio
	}
	return res, nil
}

// VoiceInfo is one entry from a voice listing.
type VoiceInfo struct {
	Voice       string `json:"voice"`
	TargetModel string `json:"target_model"`
	VoicePrompt string `json:"voice_prompt"`
	Language    string `json:"language"`
	Created     string `json:"gmt_create"`
	Modified    string `json:"gmt_modified"`
	PreviewText string `json:"preview_text"`
}

// ListVoices pages through the voices created under the given model.
func (c *Client) ListVoices(ctx context.Context, model string, pageIndex, pageSize int) ([]VoiceInfo, int, error) {
	input := map[string]any{
		"action":     "list",
		"page_index": pageIndex,
		"page_size":  pageSize,
	}
	var out struct {
		VoiceList  []VoiceInfo `json:"voice_list"`
		TotalCount int         `json:"total_count"`
	}
	if err := c.post(ctx, model, input, nil, &out); err != nil {
		return nil, 0, err
	}
	return out.VoiceList, out.TotalCount, nil
}

// QueryVoice returns the details of one designed voice.
func (c *Client) QueryVoice(ctx context.Context, model, voice string) (*VoiceInfo, error) {
	input := map[string]any{
		"action": "query",
		"voice":  voice,
	}
	var out VoiceInfo
	if err := c.post(ctx, model, input, nil, &out); err != nil {
		return nil, err
	}
	if out.Voice == "" {
		out.Voice = voice
	}
	return &out, nil
}

// DeleteVoice removes a voice and returns the deleted name.
func (c *Client) DeleteVoice(ctx context.Context, model, voice string) (string, error) {
	input := map[string]any{
		"action": "delete",
		"voice":  voice,
	}
	var out struct {
		Voice string `json:"voice"`
	}
	if err := c.post(ctx, model, input, nil, &out); err != nil {
		return "", err
	}
	if out.Voice == "" {
		return voice, nil
	}
	return out.Voice, nil
}

func (c *Client) post(ctx context.Context, model string, input, params map[string]any, out any) error {
	payload := map[string]any{
		"model": model,
		"input": input,
	}
	if params != nil {
		payload["parameters"] = params
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return fmt.Errorf("encode dashscope request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return fmt.Errorf("build dashscope request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &gen.TransportError{Op: "dashscope request", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return &gen.ProviderError{
			Provider:   "dashscope",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    strings.TrimSpace(string(errBody)),
		}
	}
	var envelope struct {
		Output json.RawMessage `json:"output"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode dashscope response: %w", err)
	}
	if out != nil && len(envelope.Output) > 0 {
		if err := json.Unmarshal(envelope.Output, out); err != nil {
			return fmt.Errorf("decode dashscope output: %w", err)
		}
	}
	return nil
}
