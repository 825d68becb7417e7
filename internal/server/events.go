package server

import "time"

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type CallStartedEvent struct {
	Event
	CallSID string `json:"call_sid"`
}

type LiveTurnEvent struct {
	Event
	CallSID  string `json:"call_sid"`
	Speaker  string `json:"speaker"`
	Text     string `json:"text"`
	Sequence int    `json:"sequence"`
}

type EmergencyDetectedEvent struct {
	Event
	CallSID string `json:"call_sid"`
	Reason  string `json:"reason"`
}

type TransferStatusEvent struct {
	Event
	CallSID string `json:"call_sid"`
	Status  string `json:"status"`
}

type CallEndedEvent struct {
	Event
	CallSID  string  `json:"call_sid"`
	Duration float64 `json:"duration"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
