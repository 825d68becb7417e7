package agent

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type sinkMock struct {
	mu     sync.Mutex
	audio  [][]byte
	clears int
}

func (s *sinkMock) SendAudio(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, append([]byte(nil), payload...))
	return nil
}

func (s *sinkMock) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	return nil
}

func (s *sinkMock) snapshot() ([][]byte, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.audio...), s.clears
}

// fakeAgentServer upgrades one connection and runs script against it.
func fakeAgentServer(t *testing.T, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/conversation" {
			t.Errorf("unexpected path %q", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("agent_id") != "agent-1" {
			t.Errorf("expected agent_id=agent-1, got %q", r.URL.Query().Get("agent_id"))
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()
		script(conn)
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func startTestEngine(t *testing.T, server *httptest.Server, sink AudioSink, cb Callbacks) Engine {
	t.Helper()
	factory := NewElevenLabsFactory("agent-1", "test-key", WithBaseURL(wsURL(server)))
	engine := factory(sink, cb)
	if err := engine.StartSession(context.Background()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	return engine
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("server read: %v", err)
	}
	return msg
}

func TestStartSessionSendsInitiation(t *testing.T) {
	got := make(chan map[string]any, 1)
	server := fakeAgentServer(t, func(conn *websocket.Conn) {
		got <- readJSON(t, conn)
		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	engine := startTestEngine(t, server, &sinkMock{}, Callbacks{})
	defer func() { _ = engine.EndSession() }()

	select {
	case msg := <-got:
		if msg["type"] != "conversation_initiation_client_data" {
			t.Fatalf("expected initiation message, got %#v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received initiation message")
	}
}

func TestEngineDispatchesEvents(t *testing.T) {
	agentText := make(chan string, 1)
	userText := make(chan string, 1)
	pong := make(chan map[string]any, 1)

	server := fakeAgentServer(t, func(conn *websocket.Conn) {
		readJSON(t, conn) // initiation

		events := []string{
			`{"type":"agent_response","agent_response_event":{"agent_response":"How can I help?"}}`,
			`{"type":"user_transcript","user_transcription_event":{"user_transcript":"My chest hurts"}}`,
			`{"type":"audio","audio_event":{"audio_base_64":"` + base64.StdEncoding.EncodeToString([]byte("pcm")) + `","event_id":1}}`,
			`{"type":"interruption"}`,
			`{"type":"ping","ping_event":{"event_id":42}}`,
		}
		for _, event := range events {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
				t.Errorf("server write: %v", err)
				return
			}
		}

		pong <- readJSON(t, conn)
	})
	defer server.Close()

	sink := &sinkMock{}
	engine := startTestEngine(t, server, sink, Callbacks{
		OnAgentUtterance: func(text string) { agentText <- text },
		OnUserUtterance:  func(text string) { userText <- text },
	})
	defer func() { _ = engine.EndSession() }()

	select {
	case text := <-agentText:
		if text != "How can I help?" {
			t.Fatalf("unexpected agent utterance %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("agent utterance callback never fired")
	}

	select {
	case text := <-userText:
		if text != "My chest hurts" {
			t.Fatalf("unexpected user utterance %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("user utterance callback never fired")
	}

	select {
	case msg := <-pong:
		if msg["type"] != "pong" || msg["event_id"] != float64(42) {
			t.Fatalf("expected pong with event_id 42, got %#v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received pong")
	}

	audio, clears := sink.snapshot()
	if len(audio) != 1 || string(audio[0]) != "pcm" {
		t.Fatalf("expected decoded audio chunk, got %#v", audio)
	}
	if clears != 1 {
		t.Fatalf("expected one clear on interruption, got %d", clears)
	}
}

func TestSendAudioEncodesChunk(t *testing.T) {
	got := make(chan map[string]any, 1)
	server := fakeAgentServer(t, func(conn *websocket.Conn) {
		readJSON(t, conn) // initiation
		got <- readJSON(t, conn)
	})
	defer server.Close()

	engine := startTestEngine(t, server, &sinkMock{}, Callbacks{})
	defer func() { _ = engine.EndSession() }()

	if err := engine.SendAudio([]byte("mulaw")); err != nil {
		t.Fatalf("SendAudio failed: %v", err)
	}

	select {
	case msg := <-got:
		chunk, _ := msg["user_audio_chunk"].(string)
		decoded, err := base64.StdEncoding.DecodeString(chunk)
		if err != nil || string(decoded) != "mulaw" {
			t.Fatalf("expected base64 mulaw chunk, got %#v (err %v)", msg, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received audio chunk")
	}
}

func TestSendAudioBeforeStartFails(t *testing.T) {
	factory := NewElevenLabsFactory("agent-1", "")
	engine := factory(&sinkMock{}, Callbacks{})
	if err := engine.SendAudio([]byte("x")); err == nil {
		t.Fatal("expected error sending audio before session start")
	}
}

func TestEndSessionStopsReadLoop(t *testing.T) {
	server := fakeAgentServer(t, func(conn *websocket.Conn) {
		readJSON(t, conn) // initiation
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	engine := startTestEngine(t, server, &sinkMock{}, Callbacks{})

	if err := engine.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	// Second call must be a no-op.
	if err := engine.EndSession(); err != nil {
		t.Fatalf("repeated EndSession failed: %v", err)
	}
}
