package telephony

import (
	"fmt"

	"github.com/twilio/twilio-go/twiml"
)

// ConferenceName derives the warm-transfer conference name for a call. It is
// a pure function of the call SID so repeated detections for one call always
// land in the same conference.
func ConferenceName(callSID string) string {
	return "medical_emergency_" + callSID
}

// InboundStreamTwiML answers the incoming-call webhook: connect the call's
// audio to the media-stream websocket endpoint.
func InboundStreamTwiML(host string) (string, error) {
	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{
			&twiml.VoiceStream{Url: fmt.Sprintf("wss://%s/media-stream", host)},
		},
	}

	doc, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		return "", fmt.Errorf("render inbound stream twiml: %w", err)
	}
	return doc, nil
}

// conferenceJoinTwiML redirects a live call into the named conference.
func conferenceJoinTwiML(conference string) (string, error) {
	dial := &twiml.VoiceDial{
		InnerElements: []twiml.Element{
			&twiml.VoiceConference{Name: conference},
		},
	}

	doc, err := twiml.Voice([]twiml.Element{dial})
	if err != nil {
		return "", fmt.Errorf("render conference join twiml: %w", err)
	}
	return doc, nil
}

// responderTwiML is spoken to the responder when they pick up, then joins
// them to the conference with the caller.
func responderTwiML(conference, reason string) (string, error) {
	verbs := []twiml.Element{
		&twiml.VoiceSay{Message: "Attention medical services. This is an automated transfer from an AI assistant that has detected a potential medical emergency."},
		&twiml.VoicePause{Length: "1"},
		&twiml.VoiceSay{Message: fmt.Sprintf("The caller reported: %s", reason)},
		&twiml.VoicePause{Length: "1"},
		&twiml.VoiceSay{Message: "You will now be connected to the caller. Please provide assistance."},
		&twiml.VoiceDial{
			InnerElements: []twiml.Element{
				&twiml.VoiceConference{Name: conference},
			},
		},
	}

	doc, err := twiml.Voice(verbs)
	if err != nil {
		return "", fmt.Errorf("render responder twiml: %w", err)
	}
	return doc, nil
}
