package session

import (
	"fmt"
	"log"

	"github.com/carebridge-dev/carebridge/internal/telephony"
)

// transferNotice is spoken in-band to the caller before the redirect.
const transferNotice = "We've detected a potential medical emergency. Transferring you to medical services. Please stay on the line."

// Notifier delivers an in-band text notice to the caller over the live
// stream. The media-stream bridge implements it.
type Notifier interface {
	SendMessage(text string) error
}

// Orchestrator executes the warm-transfer sequence: notify the caller,
// redirect their call into the emergency conference, then dial the responder
// into the same conference with a context announcement. Each step can fail
// independently; a failure aborts the remaining steps and nothing is rolled
// back or retried.
type Orchestrator struct {
	plane telephony.ControlPlane
}

func NewOrchestrator(plane telephony.ControlPlane) *Orchestrator {
	return &Orchestrator{plane: plane}
}

func (o *Orchestrator) Transfer(notifier Notifier, callSID, reason string) error {
	if err := notifier.SendMessage(transferNotice); err != nil {
		return fmt.Errorf("send transfer notice: %w", err)
	}

	conference := telephony.ConferenceName(callSID)

	if err := o.plane.RedirectToConference(callSID, conference); err != nil {
		return fmt.Errorf("redirect caller: %w", err)
	}

	if err := o.plane.DialResponder(conference, reason); err != nil {
		return fmt.Errorf("dial responder: %w", err)
	}

	log.Printf("call %s transferred to medical services, conference %s", callSID, conference)
	return nil
}
