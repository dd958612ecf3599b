package types

import (
	"time"
)

// FrustrationLevel is the coarse bucket derived from a frustration score
type FrustrationLevel string

const (
	LevelNone   FrustrationLevel = "NONE"
	LevelLow    FrustrationLevel = "LOW"
	LevelMedium FrustrationLevel = "MEDIUM"
	LevelHigh   FrustrationLevel = "HIGH"
)

// TimestampLayout is the ISO-8601 UTC layout used on the wire
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t as an ISO-8601 UTC timestamp with millisecond precision
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// QueuedEvent is a telemetry record owned by the delivery queue until the
// collector acknowledges it. It is never mutated after creation.
type QueuedEvent struct {
	EventType       string         `json:"eventType"`
	SessionID       string         `json:"sessionId"`
	DeviceID        string         `json:"deviceId"`
	ClientTimestamp string         `json:"clientTimestamp"`
	Payload         map[string]any `json:"payload"`
	UserID          string         `json:"userId,omitempty"`
}

// EventBatch is the body POSTed to the collector events endpoint
type EventBatch struct {
	Events []QueuedEvent `json:"events"`
}

// Feedback is the body POSTed to the collector feedback endpoint
type Feedback struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	SessionID string         `json:"sessionId"`
	DeviceID  string         `json:"deviceId"`
	UserID    string         `json:"userId,omitempty"`
	Context   map[string]any `json:"context"`
}

// Feedback types used by the built-in flows
const (
	FeedbackTypeReview       = "review"
	FeedbackTypeIntervention = "frustration"
	FeedbackTypeGeneral      = "general"
)

// Event types emitted by the SDK itself
const (
	EventScreenView             = "screen_view"
	EventFailure                = "failure"
	EventSuccess                = "success"
	EventIdentify               = "identify"
	EventFrustrationRageTap     = "frustration_rage_tap"
	EventFrustrationLevel       = "frustration_level_changed"
	EventReviewPromptShown      = "review_prompt_shown"
	EventReviewPromptResponse   = "review_prompt_response"
	EventReviewPromptSkipped    = "review_prompt_skipped"
	EventInterventionShown      = "intervention_shown"
	EventInterventionResponse   = "intervention_response"
	EventFeedback               = "feedback"
	EventFeedbackSubmitted      = "feedback_submitted"
	EventStoreReviewRequested   = "store_review_requested"
	EventStoreReviewUnavailable = "store_review_failed"
)

// ReviewResponse is the closed set of answers to the sentiment pre-prompt
type ReviewResponse interface {
	reviewResponse()
	String() string
}

// ReviewPositive means the user enjoys the app; a store review is requested next
type ReviewPositive struct{}

// ReviewNeutral means the user had no strong opinion
type ReviewNeutral struct{}

// ReviewNegative carries optional free-text feedback
type ReviewNegative struct {
	Feedback string
}

// ReviewDismissed means the prompt was closed without an answer
type ReviewDismissed struct{}

func (ReviewPositive) reviewResponse()  {}
func (ReviewNeutral) reviewResponse()   {}
func (ReviewNegative) reviewResponse()  {}
func (ReviewDismissed) reviewResponse() {}

func (ReviewPositive) String() string  { return "positive" }
func (ReviewNeutral) String() string   { return "neutral" }
func (ReviewNegative) String() string  { return "negative" }
func (ReviewDismissed) String() string { return "dismissed" }

// Intervention describes the prompt offered to a frustrated user
type Intervention struct {
	Title   string
	Message string
	Level   FrustrationLevel
	Score   int
}

// InterventionResponse is the closed set of answers to an intervention prompt
type InterventionResponse interface {
	interventionResponse()
	String() string
}

// InterventionFeedback carries the text the user wrote into the intervention
type InterventionFeedback struct {
	Message string
}

// InterventionDismissed means the intervention was closed without feedback
type InterventionDismissed struct{}

func (InterventionFeedback) interventionResponse()  {}
func (InterventionDismissed) interventionResponse() {}

func (InterventionFeedback) String() string  { return "feedback" }
func (InterventionDismissed) String() string { return "dismissed" }
