package bridge

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Media-stream frame events this bridge understands. Anything else is
// ignored and the stream continues.
const (
	EventStart = "start"
	EventMedia = "media"
	EventStop  = "stop"
)

// ErrMalformedFrame marks an inbound frame that could not be parsed. The
// receive loop logs and skips these.
var ErrMalformedFrame = errors.New("malformed media-stream frame")

// Frame is one decoded inbound control/media message.
type Frame struct {
	Event string      `json:"event"`
	Start *StartFrame `json:"start,omitempty"`
	Media *MediaFrame `json:"media,omitempty"`
}

// StartFrame carries the session identifiers announced at stream start.
type StartFrame struct {
	StreamSID string `json:"streamSid"`
	CallSID   string `json:"callSid"`
}

// MediaFrame carries one chunk of base64-encoded caller audio.
type MediaFrame struct {
	Payload string `json:"payload"`
}

// ParseFrame decodes a raw websocket message into a Frame. Empty messages
// and messages without an event name come back with an empty Event and are
// ignored by the caller; unparseable JSON is ErrMalformedFrame.
func ParseFrame(data []byte) (Frame, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Frame{}, nil
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return frame, nil
}

// AudioPayload decodes the media payload of a media frame.
func (f Frame) AudioPayload() ([]byte, error) {
	if f.Media == nil {
		return nil, fmt.Errorf("%w: media frame without payload", ErrMalformedFrame)
	}
	audio, err := base64.StdEncoding.DecodeString(f.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode media payload: %v", ErrMalformedFrame, err)
	}
	return audio, nil
}
