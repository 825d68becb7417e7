package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/carebridge-dev/carebridge/internal/agent"
	"github.com/carebridge-dev/carebridge/internal/bridge"
	"github.com/carebridge-dev/carebridge/internal/classify"
	"github.com/carebridge-dev/carebridge/internal/transcript"
)

type Store interface {
	CreateCall(callSID, streamSID string, startedAt time.Time) error
	EndCall(callSID string, endedAt time.Time) error
	UpdateCallStatus(callSID, status, reason string) error
	AppendTurn(callSID string, turn transcript.Turn) error
}

type EventBroadcaster interface {
	BroadcastCallStarted(callSID string)
	BroadcastLiveTurn(callSID string, turn transcript.Turn)
	BroadcastEmergencyDetected(callSID, reason string)
	BroadcastTransferStatus(callSID, status string)
	BroadcastCallEnded(callSID string, duration time.Duration)
}

// Config carries the per-process collaborators every call controller shares.
type Config struct {
	EngineFactory agent.Factory
	Classifier    classify.Classifier
	FailMode      classify.FailMode
	Orchestrator  *Orchestrator
	Store         Store
	Hub           EventBroadcaster
}

// Controller coordinates one call: it owns the Session record, runs the
// single-threaded receive loop over the media stream, and wires the engine
// callbacks to the conversation log and classifier.
//
// Two concurrency domains touch a call: the receive loop (this goroutine)
// and the engine's read goroutine delivering utterance callbacks. Callbacks
// never mutate the session; they append to the log, classify, and hand
// detections to the loop over a bounded channel. The loop is the only status
// mutator, so transfer side effects run at most once and never concurrently.
type Controller struct {
	stream       *bridge.Stream
	engine       agent.Engine
	turns        *transcript.Log
	classifier   classify.Classifier
	failMode     classify.FailMode
	orchestrator *Orchestrator
	store        Store
	hub          EventBroadcaster

	detections chan string

	mu   sync.Mutex
	sess Session
}

func NewController(conn bridge.Conn, cfg Config) *Controller {
	c := &Controller{
		stream:       bridge.NewStream(conn),
		turns:        transcript.NewLog(),
		classifier:   cfg.Classifier,
		failMode:     cfg.FailMode,
		orchestrator: cfg.Orchestrator,
		store:        cfg.Store,
		hub:          cfg.Hub,
		detections:   make(chan string, 4),
		sess: Session{
			Status:    StatusActive,
			StartedAt: time.Now().UTC(),
		},
	}

	c.engine = cfg.EngineFactory(c.stream, agent.Callbacks{
		OnAgentUtterance: c.onAgentUtterance,
		OnUserUtterance:  c.onUserUtterance,
	})

	return c
}

// Session returns a copy of the current session record.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Run drives the receive loop until the stream ends. It must be called from
// exactly one goroutine; all session mutation happens here.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.engine.StartSession(ctx); err != nil {
		return fmt.Errorf("start agent session: %w", err)
	}
	defer c.teardown()

	for {
		frame, err := c.stream.ReadFrame()
		if errors.Is(err, bridge.ErrMalformedFrame) {
			log.Printf("warning: skipping malformed frame: %v", err)
			continue
		}
		if err != nil {
			// Stream disconnect — normal end of call.
			return nil
		}

		if done := c.handleFrame(frame); done {
			return nil
		}

		// Detections are produced on the engine's callback goroutine; the
		// loop consumes them here so orchestration stays off that thread.
		c.checkDetections()
	}
}

func (c *Controller) handleFrame(frame bridge.Frame) (done bool) {
	switch frame.Event {
	case bridge.EventStart:
		if frame.Start == nil {
			log.Printf("warning: start frame without session identifiers")
			return false
		}
		c.mu.Lock()
		c.sess.CallSID = frame.Start.CallSID
		c.sess.StreamSID = frame.Start.StreamSID
		startedAt := c.sess.StartedAt
		c.mu.Unlock()

		c.stream.SetStreamSID(frame.Start.StreamSID)
		if err := c.store.CreateCall(frame.Start.CallSID, frame.Start.StreamSID, startedAt); err != nil {
			log.Printf("warning: persist call start: %v", err)
		}
		c.hub.BroadcastCallStarted(frame.Start.CallSID)
		log.Printf("media stream started, call %s stream %s", frame.Start.CallSID, frame.Start.StreamSID)

	case bridge.EventMedia:
		audio, err := frame.AudioPayload()
		if err != nil {
			log.Printf("warning: skipping media frame: %v", err)
			return false
		}
		if err := c.engine.SendAudio(audio); err != nil {
			log.Printf("warning: forward caller audio: %v", err)
		}

	case bridge.EventStop:
		return true
	}

	// Unknown and empty frames fall through and are ignored.
	return false
}

func (c *Controller) checkDetections() {
	select {
	case reason := <-c.detections:
		c.handleDetection(reason)
	default:
	}
}

func (c *Controller) handleDetection(reason string) {
	c.mu.Lock()
	status := c.sess.Status
	callSID := c.sess.CallSID
	c.mu.Unlock()

	// At most one transfer per session. Anything past ACTIVE, including a
	// prior failed attempt, swallows further detections.
	if status != StatusActive {
		return
	}
	if callSID == "" {
		log.Printf("warning: emergency detected before call sid known, ignoring")
		return
	}

	log.Printf("medical emergency detected on call %s: %s", callSID, reason)
	c.setStatus(StatusEmergencyDetected, reason)
	c.hub.BroadcastEmergencyDetected(callSID, reason)

	c.setStatus(StatusTransferring, "")
	c.hub.BroadcastTransferStatus(callSID, string(StatusTransferring))

	if err := c.orchestrator.Transfer(c.stream, callSID, reason); err != nil {
		log.Printf("transfer failed for call %s: %v", callSID, err)
		c.setStatus(StatusError, "")
		c.hub.BroadcastTransferStatus(callSID, string(StatusError))
		return
	}

	c.setStatus(StatusTransferred, "")
	c.hub.BroadcastTransferStatus(callSID, string(StatusTransferred))
}

func (c *Controller) setStatus(status Status, reason string) {
	c.mu.Lock()
	c.sess.Status = status
	if reason != "" {
		c.sess.EmergencyReason = reason
	}
	callSID := c.sess.CallSID
	c.mu.Unlock()

	if callSID == "" {
		return
	}
	if err := c.store.UpdateCallStatus(callSID, string(status), reason); err != nil {
		log.Printf("warning: persist call status: %v", err)
	}
}

// onAgentUtterance runs on the engine's callback goroutine. The classifier
// call blocks on network I/O, which is fine here: it delays detection, not
// audio delivery on the receive loop.
func (c *Controller) onAgentUtterance(text string) {
	turn := c.turns.Append(transcript.SpeakerAgent, text)
	c.persistTurn(turn)

	result := c.classifier.Classify(context.Background(), c.turns.Snapshot())
	if result.Err != nil {
		log.Printf("warning: emergency classification failed: %v", result.Err)
	}

	decision := classify.Decide(result, c.failMode)
	if !decision.Transfer {
		return
	}

	select {
	case c.detections <- decision.Reason:
	default:
		// A detection is already pending; one transfer is all we do.
	}
}

func (c *Controller) onUserUtterance(text string) {
	turn := c.turns.Append(transcript.SpeakerUser, text)
	c.persistTurn(turn)
}

func (c *Controller) persistTurn(turn transcript.Turn) {
	c.mu.Lock()
	callSID := c.sess.CallSID
	c.mu.Unlock()

	if callSID == "" {
		return
	}
	if err := c.store.AppendTurn(callSID, turn); err != nil {
		log.Printf("warning: persist turn: %v", err)
	}
	c.hub.BroadcastLiveTurn(callSID, turn)
}

func (c *Controller) teardown() {
	if err := c.engine.EndSession(); err != nil {
		log.Printf("warning: end agent session: %v", err)
	}

	c.mu.Lock()
	c.sess.Status = StatusEnded
	callSID := c.sess.CallSID
	startedAt := c.sess.StartedAt
	c.mu.Unlock()

	if callSID == "" {
		return
	}
	if err := c.store.EndCall(callSID, time.Now().UTC()); err != nil {
		log.Printf("warning: persist call end: %v", err)
	}
	c.hub.BroadcastCallEnded(callSID, time.Since(startedAt))
}
