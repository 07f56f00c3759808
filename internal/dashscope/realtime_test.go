package dashscope

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"genix/internal/gen"
)

var upgrader = websocket.Upgrader{}

// newRealtimeServer runs handler inside an upgraded WebSocket connection
// and returns a synthesizer pointed at it.
func newRealtimeServer(t *testing.T, handler func(*websocket.Conn)) *Synthesizer {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(server.Close)
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	s, err := NewSynthesizer("ds-test", WithRealtimeURL(url))
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	return s
}

// drainClientMessages reads the session.update/append/commit frames.
func drainClientMessages(t *testing.T, conn *websocket.Conn, n int) []map[string]any {
	t.Helper()
	msgs := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Errorf("read client message %d: %v", i, err)
			return msgs
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestSynthesizeAccumulatesChunks(t *testing.T) {
	chunks := [][]byte{[]byte("aud"), []byte("io-"), []byte("pcm")}
	s := newRealtimeServer(t, func(conn *websocket.Conn) {
		msgs := drainClientMessages(t, conn, 3)
		if len(msgs) == 3 {
			if msgs[0]["type"] != "session.update" {
				t.Errorf("first message = %v", msgs[0])
			}
			session := msgs[0]["session"].(map[string]any)
			if session["voice"] != "Cherry" || session["mode"] != "commit" {
				t.Errorf("session = %v", session)
			}
			if msgs[1]["type"] != "input_text_buffer.append" || msgs[1]["text"] != "hello" {
				t.Errorf("append = %v", msgs[1])
			}
			if msgs[2]["type"] != "input_text_buffer.commit" {
				t.Errorf("commit = %v", msgs[2])
			}
		}
		_ = conn.WriteJSON(map[string]any{"type": "session.created", "session": map[string]any{"id": "s1"}})
		for _, chunk := range chunks {
			_ = conn.WriteJSON(map[string]any{
				"type":  "response.audio.delta",
				"delta": base64.StdEncoding.EncodeToString(chunk),
			})
		}
		_ = conn.WriteJSON(map[string]any{"type": "response.done"})
		// Keep the connection open long enough for the session.finish frame.
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, _, _ = conn.ReadMessage()
	})

	audio, err := s.Synthesize(context.Background(), SpeechRequest{
		Text:       "hello",
		Voice:      "Cherry",
		Model:      "qwen3-tts-flash-realtime",
		Format:     "mp3",
		SampleRate: 24000,
		Volume:     50,
		Speed:      1.0,
		Pitch:      1.0,
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "audio-pcm" {
		t.Fatalf("audio = %q", audio)
	}
}

func TestSynthesizeServerError(t *testing.T) {
	s := newRealtimeServer(t, func(conn *websocket.Conn) {
		drainClientMessages(t, conn, 3)
		_ = conn.WriteJSON(map[string]any{
			"type":  "error",
			"error": map[string]any{"message": "voice not found"},
		})
	})
	_, err := s.Synthesize(context.Background(), SpeechRequest{Text: "x", Model: "m"})
	var perr *gen.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !strings.Contains(perr.Message, "voice not found") {
		t.Fatalf("message = %q", perr.Message)
	}
}

func TestSynthesizeAbnormalClose(t *testing.T) {
	s := newRealtimeServer(t, func(conn *websocket.Conn) {
		drainClientMessages(t, conn, 3)
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "backend crashed"),
			time.Now().Add(time.Second),
		)
	})
	_, err := s.Synthesize(context.Background(), SpeechRequest{Text: "x", Model: "m"})
	var terr *gen.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestSynthesizeNoAudio(t *testing.T) {
	s := newRealtimeServer(t, func(conn *websocket.Conn) {
		drainClientMessages(t, conn, 3)
		_ = conn.WriteJSON(map[string]any{"type": "response.done"})
	})
	_, err := s.Synthesize(context.Background(), SpeechRequest{Text: "x", Model: "m"})
	if err == nil || !strings.Contains(err.Error(), "no audio data") {
		t.Fatalf("expected no-audio error, got %v", err)
	}
}

func TestSynthesizeCancelReleasesReader(t *testing.T) {
	// The server floods deltas until the connection drops and never signals
	// completion, so cancellation catches the read goroutine mid-send with a
	// full results buffer.
	s := newRealtimeServer(t, func(conn *websocket.Conn) {
		drainClientMessages(t, conn, 3)
		delta := base64.StdEncoding.EncodeToString([]byte("x"))
		for {
			if err := conn.WriteJSON(map[string]any{"type": "response.audio.delta", "delta": delta}); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	before := runtime.NumGoroutine()

	_, err := s.Synthesize(ctx, SpeechRequest{Text: "x", Model: "m"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := runtime.NumGoroutine(); n > before {
		t.Fatalf("read goroutine still running after cancel (%d > %d)", n, before)
	}
}

func TestEventDecoding(t *testing.T) {
	raw := `{"type":"response.audio.delta","delta":"QUJD"}`
	var ev event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != "response.audio.delta" || ev.Delta != "QUJD" {
		t.Fatalf("event = %+v", ev)
	}
}
