package telephony

import (
	"fmt"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// ControlPlane is the telephony operations the transfer sequence needs.
// The generated Twilio REST bindings are not context-aware, so neither is
// this interface.
type ControlPlane interface {
	// RedirectToConference moves a live call into the named conference.
	RedirectToConference(callSID, conference string) error
	// DialResponder places an outbound call to the configured responder,
	// announces the emergency reason, and joins them to the conference.
	DialResponder(conference, reason string) error
}

// Config holds the Twilio account settings and call endpoints.
type Config struct {
	AccountSID      string
	AuthToken       string
	FromNumber      string
	ResponderNumber string
}

// Twilio implements ControlPlane against the Twilio REST API.
type Twilio struct {
	rest      *twilio.RestClient
	from      string
	responder string
}

func NewTwilio(cfg Config) *Twilio {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Twilio{
		rest:      client,
		from:      cfg.FromNumber,
		responder: cfg.ResponderNumber,
	}
}

func (t *Twilio) RedirectToConference(callSID, conference string) error {
	doc, err := conferenceJoinTwiML(conference)
	if err != nil {
		return err
	}

	params := &api.UpdateCallParams{}
	params.SetTwiml(doc)
	if _, err := t.rest.Api.UpdateCall(callSID, params); err != nil {
		return fmt.Errorf("redirect call %s to conference: %w", callSID, err)
	}
	return nil
}

func (t *Twilio) DialResponder(conference, reason string) error {
	doc, err := responderTwiML(conference, reason)
	if err != nil {
		return err
	}

	params := &api.CreateCallParams{}
	params.SetTo(t.responder)
	params.SetFrom(t.from)
	params.SetTwiml(doc)
	if _, err := t.rest.Api.CreateCall(params); err != nil {
		return fmt.Errorf("dial responder %s: %w", t.responder, err)
	}
	return nil
}
