// Package frustration infers user frustration from taps, failures, successes
// and time decay as a score in [0,100] bucketed into four levels.
package frustration

import (
	"sync"
	"time"

	"github.com/cuemby/feelback/pkg/events"
	"github.com/cuemby/feelback/pkg/types"
)

// Score adjustments
const (
	MaxScore = 100

	rageTapIncrement     = 30
	firstFailurePenalty  = 10
	secondFailurePenalty = 15
	streakFailurePenalty = 25
	successRelief        = 15
	decayStep            = 5
)

// DecayInterval is the period on which ApplyDecay is meant to be invoked
const DecayInterval = 30 * time.Second

// Level thresholds, highest first
var thresholds = []struct {
	min   int
	level types.FrustrationLevel
}{
	{70, types.LevelHigh},
	{40, types.LevelMedium},
	{20, types.LevelLow},
	{0, types.LevelNone},
}

// LevelForScore returns the highest level whose threshold is <= score
func LevelForScore(score int) types.FrustrationLevel {
	for _, t := range thresholds {
		if score >= t.min {
			return t.level
		}
	}
	return types.LevelNone
}

// ThresholdFor returns the minimum score of a level
func ThresholdFor(level types.FrustrationLevel) int {
	for _, t := range thresholds {
		if t.level == level {
			return t.min
		}
	}
	return 0
}

// Config holds rage-tap detection parameters
type Config struct {
	RageTapThreshold int
	RageTapWindow    time.Duration
}

// DefaultConfig returns the default rage-tap parameters
func DefaultConfig() Config {
	return Config{
		RageTapThreshold: 6,
		RageTapWindow:    2 * time.Second,
	}
}

// State is a point-in-time copy of the engine state
type State struct {
	Score               int
	Level               types.FrustrationLevel
	RecentTaps          []time.Time
	ConsecutiveFailures int
}

// Engine maintains a bounded frustration score from discrete signals.
// All methods are safe for concurrent use; subscribers are notified
// synchronously after the engine lock is released.
type Engine struct {
	config Config
	broker *events.Broker

	mu       sync.Mutex
	score    int
	taps     []time.Time
	failures int
}

// NewEngine creates an engine with score 0
func NewEngine(cfg Config) *Engine {
	if cfg.RageTapThreshold < 1 {
		cfg.RageTapThreshold = 1
	}
	return &Engine{
		config: cfg,
		broker: events.NewBroker(),
	}
}

// Subscribe registers a handler for rage-tap and level-change events
func (e *Engine) Subscribe(h events.Handler) events.Subscription {
	return e.broker.Subscribe(h)
}

// Unsubscribe removes a handler
func (e *Engine) Unsubscribe(sub events.Subscription) {
	e.broker.Unsubscribe(sub)
}

// RecordTap feeds one tap into the sliding window. It reports whether the
// tap completed a rage tap.
func (e *Engine) RecordTap(ts time.Time) bool {
	e.mu.Lock()

	kept := e.taps[:0]
	for _, t := range e.taps {
		if ts.Sub(t) <= e.config.RageTapWindow {
			kept = append(kept, t)
		}
	}
	e.taps = append(kept, ts)

	if len(e.taps) < e.config.RageTapThreshold {
		e.mu.Unlock()
		return false
	}

	e.taps = nil
	before := LevelForScore(e.score)
	e.score = clamp(e.score + rageTapIncrement)
	after := LevelForScore(e.score)
	score := e.score
	e.mu.Unlock()

	e.broker.Publish(events.Event{
		Type:          events.EventRageTap,
		Timestamp:     ts,
		Level:         after,
		PreviousLevel: before,
		Score:         score,
	})
	e.publishIfChanged(before, after, score, "rage_tap")
	return true
}

// RecordFailure raises the score by an escalating penalty: 10 for the first
// failure in a streak, 15 for the second, 25 from the third on.
func (e *Engine) RecordFailure(reason string) {
	e.mu.Lock()
	e.failures++

	penalty := streakFailurePenalty
	switch e.failures {
	case 1:
		penalty = firstFailurePenalty
	case 2:
		penalty = secondFailurePenalty
	}

	before := LevelForScore(e.score)
	e.score = clamp(e.score + penalty)
	after := LevelForScore(e.score)
	score := e.score
	e.mu.Unlock()

	e.publishIfChanged(before, after, score, reason)
}

// RecordSuccess ends a failure streak and relieves 15 points
func (e *Engine) RecordSuccess() {
	e.mu.Lock()
	e.failures = 0

	before := LevelForScore(e.score)
	e.score = clamp(e.score - successRelief)
	after := LevelForScore(e.score)
	score := e.score
	e.mu.Unlock()

	e.publishIfChanged(before, after, score, "success")
}

// ApplyDecay lowers a non-zero score by 5. It is a no-op at score 0.
func (e *Engine) ApplyDecay() {
	e.mu.Lock()
	if e.score == 0 {
		e.mu.Unlock()
		return
	}

	before := LevelForScore(e.score)
	e.score = clamp(e.score - decayStep)
	after := LevelForScore(e.score)
	score := e.score
	e.mu.Unlock()

	e.publishIfChanged(before, after, score, "decay")
}

// Reset returns the engine to its initial state and reports the level held
// before the reset. No event is published; callers compare levels themselves.
func (e *Engine) Reset() types.FrustrationLevel {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := LevelForScore(e.score)
	e.score = 0
	e.taps = nil
	e.failures = 0
	return before
}

// Score returns the current score
func (e *Engine) Score() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score
}

// Level returns the current level
func (e *Engine) Level() types.FrustrationLevel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return LevelForScore(e.score)
}

// State returns a copy of the full engine state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return State{
		Score:               e.score,
		Level:               LevelForScore(e.score),
		RecentTaps:          append([]time.Time(nil), e.taps...),
		ConsecutiveFailures: e.failures,
	}
}

func (e *Engine) publishIfChanged(before, after types.FrustrationLevel, score int, reason string) {
	if before == after {
		return
	}
	e.broker.Publish(events.Event{
		Type:          events.EventLevelChanged,
		Level:         after,
		PreviousLevel: before,
		Score:         score,
		Reason:        reason,
	})
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
