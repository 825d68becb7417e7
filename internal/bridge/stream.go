package bridge

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the stream needs; tests substitute a
// fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Stream is the duplex adapter over one telephony media-stream connection.
// Reads happen only on the call's receive loop; writes come from both the
// receive loop (notices) and the engine's read goroutine (agent audio), so
// they are serialized behind a mutex.
type Stream struct {
	conn Conn

	writeMu sync.Mutex

	mu        sync.Mutex
	streamSID string
}

func NewStream(conn Conn) *Stream {
	return &Stream{conn: conn}
}

// ReadFrame blocks for the next inbound frame.
func (s *Stream) ReadFrame() (Frame, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	return ParseFrame(data)
}

// SetStreamSID records the stream identifier announced by the start frame.
// Outbound media frames require it.
func (s *Stream) SetStreamSID(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamSID = sid
}

// StreamSID returns the recorded stream identifier, if any.
func (s *Stream) StreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}

// SendAudio delivers one chunk of agent audio to the caller.
func (s *Stream) SendAudio(payload []byte) error {
	sid := s.StreamSID()
	if sid == "" {
		return fmt.Errorf("send audio: stream sid not yet known")
	}
	return s.writeJSON(map[string]any{
		"event":     EventMedia,
		"streamSid": sid,
		"media": map[string]string{
			"payload": base64.StdEncoding.EncodeToString(payload),
		},
	})
}

// SendMessage delivers an in-band text notice to the caller.
func (s *Stream) SendMessage(text string) error {
	return s.writeJSON(map[string]any{
		"event":   "message",
		"message": text,
	})
}

// Clear tells the caller side to drop buffered agent audio (interruption).
func (s *Stream) Clear() error {
	sid := s.StreamSID()
	if sid == "" {
		return nil
	}
	return s.writeJSON(map[string]any{
		"event":     "clear",
		"streamSid": sid,
	})
}

func (s *Stream) Close() error {
	return s.conn.Close()
}

func (s *Stream) writeJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal outbound frame: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}
