package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/carebridge-dev/carebridge/internal/transcript"
)

// Hub fans call events out to connected dashboard clients. Slow clients drop
// messages rather than block the call path.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastCallStarted(callSID string) {
	h.broadcastEvent(CallStartedEvent{
		Event:   newEvent("call_started", time.Now().UTC()),
		CallSID: callSID,
	})
}

func (h *Hub) BroadcastLiveTurn(callSID string, turn transcript.Turn) {
	h.broadcastEvent(LiveTurnEvent{
		Event:    newEvent("live_turn", turn.Timestamp),
		CallSID:  callSID,
		Speaker:  string(turn.Speaker),
		Text:     turn.Text,
		Sequence: turn.Sequence,
	})
}

func (h *Hub) BroadcastEmergencyDetected(callSID, reason string) {
	h.broadcastEvent(EmergencyDetectedEvent{
		Event:   newEvent("emergency_detected", time.Now().UTC()),
		CallSID: callSID,
		Reason:  reason,
	})
}

func (h *Hub) BroadcastTransferStatus(callSID, status string) {
	h.broadcastEvent(TransferStatusEvent{
		Event:   newEvent("transfer_status", time.Now().UTC()),
		CallSID: callSID,
		Status:  status,
	})
}

func (h *Hub) BroadcastCallEnded(callSID string, duration time.Duration) {
	h.broadcastEvent(CallEndedEvent{
		Event:    newEvent("call_ended", time.Now().UTC()),
		CallSID:  callSID,
		Duration: duration.Seconds(),
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
