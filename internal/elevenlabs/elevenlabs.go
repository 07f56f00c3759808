// Package elevenlabs provides a thin wrapper for the ElevenLabs generation
// APIs: text-to-speech, music, sound effects, and voice search.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"genix/internal/gen"
)

const (
	defaultBaseURL      = "https://api.elevenlabs.io"
	DefaultOutputFormat = "mp3_44100_128"

	// Rachel
	DefaultVoiceID   = "21m00Tcm4TlvDq8ikWAM"
	DefaultVoiceName = "Rachel"
)

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
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

// Client calls the ElevenLabs API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New constructs a client. The apiKey is required.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs api key is required")
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// VoiceSettings tunes speech synthesis. Nil fields are omitted.
type VoiceSettings struct {
	Stability       *float64 `json:"stability,omitempty"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty"`
	Speed           *float64 `json:"speed,omitempty"`
}

// SpeechRequest generates speech for Text with the given voice.
type SpeechRequest struct {
	Text          string
	VoiceID       string
	ModelID       string
	OutputFormat  string
	VoiceSettings *VoiceSettings
}

// Speech synthesizes speech and returns the audio stream. The caller owns
// the reader.
func (c *Client) Speech(ctx context.Context, req SpeechRequest) (io.ReadCloser, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("text is required")
	}
	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	body := struct {
		Text          string         `json:"text"`
		ModelID       string         `json:"model_id,omitempty"`
		VoiceSettings *VoiceSettings `json:"voice_settings,omitempty"`
	}{
		Text:          req.Text,
		ModelID:       req.ModelID,
		VoiceSettings: req.VoiceSettings,
	}
	return c.postStream(ctx, "/v1/text-to-speech/"+voiceID, req.OutputFormat, body)
}

// MusicRequest generates a piece of music from a prompt.
type MusicRequest struct {
	Prompt       string
	ModelID      string
	LengthMS     int
	Instrumental bool
	OutputFormat string
}

// Music composes music and returns the audio stream.
func (c *Client) Music(ctx context.Context, req MusicRequest) (io.ReadCloser, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("prompt is required")
	}
	body := struct {
		Prompt            string `json:"prompt"`
		ModelID           string `json:"model_id,omitempty"`
		MusicLengthMS     int    `json:"music_length_ms,omitempty"`
		ForceInstrumental bool   `json:"force_instrumental,omitempty"`
	}{
		Prompt:            req.Prompt,
		ModelID:           req.ModelID,
		MusicLengthMS:     req.LengthMS,
		ForceInstrumental: req.Instrumental,
	}
	return c.postStream(ctx, "/v1/music", req.OutputFormat, body)
}

// SoundEffectRequest generates a sound effect from a description.
type SoundEffectRequest struct {
	Text            string
	ModelID         string
	DurationSeconds *float64 // nil lets the model pick
	PromptInfluence float64
	Loop            bool
	OutputFormat    string
}

// SoundEffect generates a sound effect and returns the audio stream.
func (c *Client) SoundEffect(ctx context.Context, req SoundEffectRequest) (io.ReadCloser, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("text is required")
	}
	body := struct {
		Text            string   `json:"text"`
		ModelID         string   `json:"model_id,omitempty"`
		DurationSeconds *float64 `json:"duration_seconds,omitempty"`
		PromptInfluence float64  `json:"prompt_influence"`
		Loop            bool     `json:"loop,omitempty"`
	}{
		Text:            req.Text,
		ModelID:         req.ModelID,
		DurationSeconds: req.DurationSeconds,
		PromptInfluence: req.PromptInfluence,
		Loop:            req.Loop,
	}
	return c.postStream(ctx, "/v1/sound-generation", req.OutputFormat, body)
}

// Voice identifies a synthesis voice.
type Voice struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
}

// FindVoice searches the account's own voices first, then the shared voice
// library, and returns the first match or nil when nothing matches.
func (c *Client) FindVoice(ctx context.Context, query string) (*Voice, error) {
	own, err := c.searchVoices(ctx, "/v2/voices", query)
	if err != nil {
		return nil, err
	}
	if own != nil {
		return own, nil
	}
	return c.searchVoices(ctx, "/v1/shared-voices", query)
}

func (c *Client) searchVoices(ctx context.Context, path, query string) (*Voice, error) {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return nil, err
	}
	q := endpoint.Query()
	q.Set("search", query)
	q.Set("page_size", "1")
	endpoint.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build elevenlabs request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &gen.TransportError{Op: "elevenlabs voice search", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, apiError(resp)
	}
	var body struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode voice search response: %w", err)
	}
	if len(body.Voices) == 0 {
		return nil, nil
	}
	v := body.Voices[0]
	return &v, nil
}

func (c *Client) postStream(ctx context.Context, path, outputFormat string, body any) (io.ReadCloser, error) {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return nil, err
	}
	if outputFormat == "" {
		outputFormat = DefaultOutputFormat
	}
	q := endpoint.Query()
	q.Set("output_format", outputFormat)
	endpoint.RawQuery = q.Encode()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode elevenlabs request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), &buf)
	if err != nil {
		return nil, fmt.Errorf("build elevenlabs request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.apiKey)
	httpReq.Header.Set("accept", "audio/mpeg")
	httpReq.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &gen.TransportError{Op: "elevenlabs request", Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		return nil, apiError(resp)
	}
	return resp.Body, nil
}

func (c *Client) endpoint(path string) (*url.URL, error) {
	endpoint, err := url.Parse(strings.TrimRight(c.baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse elevenlabs base url: %w", err)
	}
	endpoint.Path = path
	return endpoint, nil
}

func apiError(resp *http.Response) error {
	errBody, _ := io.ReadAll(resp.Body)
	return &gen.ProviderError{
		Provider:   "elevenlabs",
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    strings.TrimSpace(string(errBody)),
	}
}
