package session

import "time"

// Status is the lifecycle state of a call session.
type Status string

const (
	StatusActive            Status = "active"
	StatusEmergencyDetected Status = "emergency_detected"
	StatusTransferring      Status = "transferring"
	StatusTransferred       Status = "transferred"
	StatusEnded             Status = "ended"
	StatusError             Status = "error"
)

// Session is the per-call record. One exists per accepted media-stream
// connection; the session identifiers are unknown until the stream's start
// frame arrives. Only the owning controller's receive loop mutates it.
type Session struct {
	CallSID         string
	StreamSID       string
	Status          Status
	EmergencyReason string
	StartedAt       time.Time
}
