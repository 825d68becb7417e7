package agent

import "context"

// AudioSink receives agent audio and interrupt signals for delivery back to
// the caller. The media-stream bridge implements it.
type AudioSink interface {
	// SendAudio delivers one chunk of encoded agent audio to the caller.
	SendAudio(payload []byte) error
	// Clear tells the caller side to drop any buffered agent audio.
	Clear() error
}

// Callbacks are invoked from the engine's own read goroutine, one at a time,
// in the order the engine emits them.
type Callbacks struct {
	// OnAgentUtterance fires when the agent completes an utterance.
	OnAgentUtterance func(text string)
	// OnUserUtterance fires when the engine transcribes a user utterance.
	OnUserUtterance func(text string)
}

// Engine is the conversational voice-agent boundary. An Engine instance
// serves exactly one call.
type Engine interface {
	// StartSession connects to the agent and begins delivering callbacks.
	StartSession(ctx context.Context) error
	// SendAudio forwards one chunk of caller audio to the agent.
	SendAudio(payload []byte) error
	// EndSession tears the agent session down. Safe to call more than once.
	EndSession() error
}

// Factory builds a fresh Engine for one call, wired to the call's audio sink
// and callbacks.
type Factory func(sink AudioSink, callbacks Callbacks) Engine
