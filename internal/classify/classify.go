package classify

import (
	"context"
	"fmt"

	"github.com/carebridge-dev/carebridge/internal/transcript"
)

// Outcome is the three-valued result of an emergency classification. Unknown
// is distinct from a confident negative: it means the classifier could not
// produce an answer at all.
type Outcome int

const (
	OutcomeNotDetected Outcome = iota
	OutcomeDetected
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDetected:
		return "detected"
	case OutcomeNotDetected:
		return "not_detected"
	case OutcomeUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result carries the classification outcome. Reason is set for Detected and
// NotDetected; Err is set only for Unknown.
type Result struct {
	Outcome Outcome
	Reason  string
	Err     error
}

// Classifier evaluates a conversation snapshot for medical-emergency signals.
// Classify blocks on network I/O and must not run on the stream receive loop.
type Classifier interface {
	Classify(ctx context.Context, turns []transcript.Turn) Result
}

// FailMode is the policy for Unknown outcomes: fail-open treats a classifier
// failure as "no emergency", fail-closed treats it as one.
type FailMode int

const (
	FailOpen FailMode = iota
	FailClosed
)

func (m FailMode) String() string {
	if m == FailClosed {
		return "closed"
	}
	return "open"
}

// ParseFailMode maps a config value to a FailMode, defaulting to fail-open.
func ParseFailMode(s string) (FailMode, error) {
	switch s {
	case "", "open":
		return FailOpen, nil
	case "closed":
		return FailClosed, nil
	default:
		return FailOpen, fmt.Errorf("invalid fail mode %q: expected open or closed", s)
	}
}

// Decision is the reviewable outcome of applying the failure policy.
type Decision struct {
	Transfer bool
	Reason   string
}

// Decide maps a classification result to a transfer decision under the given
// failure policy. Only Unknown outcomes are policy-dependent.
func Decide(res Result, mode FailMode) Decision {
	switch res.Outcome {
	case OutcomeDetected:
		return Decision{Transfer: true, Reason: res.Reason}
	case OutcomeUnknown:
		if mode == FailClosed {
			return Decision{Transfer: true, Reason: "classifier unavailable, transferring as a precaution"}
		}
		return Decision{}
	default:
		return Decision{}
	}
}
