package models

import (
	"net/http"
	"time"
)

// Tier is a fetch capability level. Higher tiers cost more and defeat more bot detection.
type Tier int

const (
	TierBaseline Tier = iota
	TierRendered
	TierResidential
)

// MaxTier is the most expensive tier available.
const MaxTier = TierResidential

func (t Tier) String() string {
	switch t {
	case TierBaseline:
		return "baseline"
	case TierRendered:
		return "rendered"
	case TierResidential:
		return "residential"
	default:
		return "unknown"
	}
}

// ParseTier converts a tier name back to a Tier.
func ParseTier(s string) (Tier, bool) {
	switch s {
	case "baseline":
		return TierBaseline, true
	case "rendered":
		return TierRendered, true
	case "residential":
		return TierResidential, true
	default:
		return TierBaseline, false
	}
}

// FetchRequest describes a single fetch attempt.
type FetchRequest struct {
	URL     string
	Tier    Tier
	Wait    time.Duration
	Scroll  bool
	Timeout time.Duration
}

// Outcome classifies a fetch attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// FetchResult is produced once per attempt (or once per escalated fetch) and never mutated.
type FetchResult struct {
	Outcome    Outcome
	Body       []byte
	StatusCode int
	Header     http.Header
	Tier       Tier
	Attempts   int
	Duration   time.Duration
	Err        error
}

// OK reports whether the fetch produced a document.
func (r FetchResult) OK() bool {
	return r.Outcome == OutcomeSuccess
}
