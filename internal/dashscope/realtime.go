package dashscope

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"genix/internal/gen"
)

const defaultRealtimeURL = "wss://dashscope.aliyuncs.com/api-ws/v1/realtime"

// SpeechRequest synthesizes Text with a realtime TTS model.
type SpeechRequest struct {
	Text       string
	Voice      string
	Model      string
	Format     string
	SampleRate int
	Volume     int
	Speed      float64
	Pitch      float64
}

// SynthesizerOption configures the realtime synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithRealtimeURL overrides the realtime WebSocket URL.
func WithRealtimeURL(url string) SynthesizerOption {
	return func(s *Synthesizer) {
		if url != "" {
			s.url = url
		}
	}
}

// WithDialer sets the WebSocket dialer.
func WithDialer(d *websocket.Dialer) SynthesizerOption {
	return func(s *Synthesizer) {
		if d != nil {
			s.dialer = d
		}
	}
}

// Synthesizer drives one realtime TTS session per Synthesize call.
type Synthesizer struct {
	apiKey string
	url    string
	dialer *websocket.Dialer
}

// NewSynthesizer constructs a realtime synthesizer. The apiKey is required.
func NewSynthesizer(apiKey string, opts ...SynthesizerOption) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("dashscope api key is required")
	}
	s := &Synthesizer{
		apiKey: apiKey,
		url:    defaultRealtimeURL,
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// event is the subset of server frames the session cares about.
type event struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
}

// readResult carries one decoded chunk or the stream's end from the read
// goroutine to the session loop.
type readResult struct {
	chunk []byte
	err   error
	done  bool
}

// Synthesize opens a session, sends the text in commit mode, and
// accumulates the streamed audio chunks in arrival order until the server
// signals completion.
func (s *Synthesizer) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.apiKey)

	conn, resp, err := s.dialer.DialContext(ctx, s.url+"?model="+req.Model, header)
	if err != nil {
		if resp != nil {
			return nil, &gen.ProviderError{
				Provider:   "dashscope",
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				Message:    "realtime handshake rejected",
			}
		}
		return nil, &gen.TransportError{Op: "dashscope realtime dial", Err: err}
	}
	defer conn.Close()

	session := map[string]any{
		"voice":           req.Voice,
		"mode":            "commit",
		"response_format": req.Format,
		"sample_rate":     req.SampleRate,
		"volume":          req.Volume,
		"speech_rate":     req.Speed,
		"pitch_rate":      req.Pitch,
	}
	outbound := []map[string]any{
		{"type": "session.update", "session": session},
		{"type": "input_text_buffer.append", "text": req.Text},
		{"type": "input_text_buffer.commit"},
	}
	for _, msg := range outbound {
		if err := conn.WriteJSON(msg); err != nil {
			return nil, &gen.TransportError{Op: "dashscope realtime send", Err: err}
		}
	}

	// done releases the read goroutine if the session ends before the
	// server does (cancellation with a full results buffer).
	done := make(chan struct{})
	defer close(done)
	results := make(chan readResult, 16)
	go readLoop(conn, results, done)

	var audio []byte
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-results:
			if res.err != nil {
				return nil, res.err
			}
			if res.done {
				if len(audio) == 0 {
					return nil, errors.New("no audio data received")
				}
				_ = conn.WriteJSON(map[string]any{"type": "session.finish"})
				return audio, nil
			}
			audio = append(audio, res.chunk...)
		}
	}
}

func readLoop(conn *websocket.Conn, results chan<- readResult, done <-chan struct{}) {
	send := func(res readResult) bool {
		select {
		case results <- res:
			return true
		case <-done:
			return false
		}
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				send(readResult{done: true})
				return
			}
			send(readResult{err: &gen.TransportError{Op: "dashscope realtime read", Err: err}})
			return
		}
		var ev event
		if err := json.Unmarshal(data, &ev); err != nil {
			send(readResult{err: fmt.Errorf("decode realtime event: %w", err)})
			return
		}
		switch ev.Type {
		case "response.audio.delta":
			if ev.Delta == "" {
				continue
			}
			chunk, err := base64.StdEncoding.DecodeString(ev.Delta)
			if err != nil {
				send(readResult{err: fmt.Errorf("decode audio delta: %w", err)})
				return
			}
			if !send(readResult{chunk: chunk}) {
				return
			}
		case "response.done", "session.finished":
			send(readResult{done: true})
			return
		case "error":
			msg := ev.Error.Message
			if msg == "" {
				msg = "unknown error"
			}
			send(readResult{err: &gen.ProviderError{Provider: "dashscope", Message: msg}})
			return
		}
	}
}
