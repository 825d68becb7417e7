package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultBaseURL = "wss://api.elevenlabs.io"

// ElevenLabs speaks the ElevenLabs Conversational AI websocket protocol.
// Audio events go to the sink, agent_response and user_transcript events go
// to the callbacks, and interruption events clear the sink.
type ElevenLabs struct {
	agentID   string
	apiKey    string
	baseURL   string
	sink      AudioSink
	callbacks Callbacks

	writeMu sync.Mutex
	conn    *websocket.Conn

	closeOnce sync.Once
	done      chan struct{}
}

// ElevenLabsOption adjusts client construction.
type ElevenLabsOption func(*ElevenLabs)

// WithBaseURL overrides the ElevenLabs endpoint (used by tests).
func WithBaseURL(url string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		e.baseURL = url
	}
}

// NewElevenLabsFactory returns a Factory producing one ElevenLabs engine per
// call for the given agent.
func NewElevenLabsFactory(agentID, apiKey string, opts ...ElevenLabsOption) Factory {
	return func(sink AudioSink, callbacks Callbacks) Engine {
		e := &ElevenLabs{
			agentID:   agentID,
			apiKey:    apiKey,
			baseURL:   defaultBaseURL,
			sink:      sink,
			callbacks: callbacks,
			done:      make(chan struct{}),
		}
		for _, opt := range opts {
			opt(e)
		}
		return e
	}
}

// serverEvent is the envelope for all messages the agent sends. Only the
// sub-object matching Type is populated.
type serverEvent struct {
	Type       string `json:"type"`
	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
		EventID     int    `json:"event_id"`
	} `json:"audio_event,omitempty"`
	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event,omitempty"`
	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event,omitempty"`
	PingEvent *struct {
		EventID int `json:"event_id"`
	} `json:"ping_event,omitempty"`
}

func (e *ElevenLabs) StartSession(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1/convai/conversation?agent_id=%s", e.baseURL, e.agentID)

	header := http.Header{}
	if e.apiKey != "" {
		header.Set("xi-api-key", e.apiKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("dial agent websocket: %w", err)
	}
	e.conn = conn

	if err := e.writeJSON(map[string]any{"type": "conversation_initiation_client_data"}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send conversation initiation: %w", err)
	}

	go e.readLoop()
	return nil
}

func (e *ElevenLabs) SendAudio(payload []byte) error {
	if e.conn == nil {
		return fmt.Errorf("agent session not started")
	}
	return e.writeJSON(map[string]any{
		"user_audio_chunk": base64.StdEncoding.EncodeToString(payload),
	})
}

func (e *ElevenLabs) EndSession() error {
	e.closeOnce.Do(func() {
		if e.conn != nil {
			_ = e.conn.Close()
		}
	})
	if e.conn == nil {
		return nil
	}

	select {
	case <-e.done:
	case <-time.After(2 * time.Second):
		return fmt.Errorf("agent session read loop did not stop")
	}
	return nil
}

func (e *ElevenLabs) readLoop() {
	defer close(e.done)

	for {
		_, data, err := e.conn.ReadMessage()
		if err != nil {
			return
		}

		var event serverEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("warning: agent sent unparseable event: %v", err)
			continue
		}

		e.dispatch(event)
	}
}

func (e *ElevenLabs) dispatch(event serverEvent) {
	switch event.Type {
	case "audio":
		if event.AudioEvent == nil {
			return
		}
		audio, err := base64.StdEncoding.DecodeString(event.AudioEvent.AudioBase64)
		if err != nil {
			log.Printf("warning: agent audio decode failed: %v", err)
			return
		}
		if err := e.sink.SendAudio(audio); err != nil {
			log.Printf("warning: deliver agent audio: %v", err)
		}
	case "agent_response":
		if event.AgentResponseEvent != nil && e.callbacks.OnAgentUtterance != nil {
			e.callbacks.OnAgentUtterance(event.AgentResponseEvent.AgentResponse)
		}
	case "user_transcript":
		if event.UserTranscriptionEvent != nil && e.callbacks.OnUserUtterance != nil {
			e.callbacks.OnUserUtterance(event.UserTranscriptionEvent.UserTranscript)
		}
	case "interruption":
		if err := e.sink.Clear(); err != nil {
			log.Printf("warning: clear caller audio: %v", err)
		}
	case "ping":
		if event.PingEvent == nil {
			return
		}
		if err := e.writeJSON(map[string]any{"type": "pong", "event_id": event.PingEvent.EventID}); err != nil {
			log.Printf("warning: pong failed: %v", err)
		}
	}
}

func (e *ElevenLabs) writeJSON(v any) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.conn.WriteJSON(v)
}
