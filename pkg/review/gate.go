// Package review decides when a user may be asked for an app store review
// and runs the sentiment pre-prompt.
package review

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/feelback/pkg/log"
	"github.com/cuemby/feelback/pkg/metrics"
	"github.com/cuemby/feelback/pkg/storage"
	"github.com/cuemby/feelback/pkg/types"
	"github.com/cuemby/feelback/pkg/ui"
	"github.com/rs/zerolog"
)

// Reasons reported in a Decision or Result
const (
	ReasonEligible       = "eligible"
	ReasonTooFewSessions = "insufficient_sessions"
	ReasonCooldown       = "cooldown"
	ReasonFrustrated     = "frustrated"
	ReasonNoActiveScreen = "no_active_screen"
	ReasonPromptFailed   = "prompt_failed"
	ReasonStorageError   = "storage_error"
)

const day = 24 * time.Hour

// Config holds the review cadence rules
type Config struct {
	MinimumSessions int
	CooldownDays    int
}

// DefaultConfig requires 3 sessions and 90 days between prompts
func DefaultConfig() Config {
	return Config{MinimumSessions: 3, CooldownDays: 90}
}

// Decision is the outcome of evaluating the cadence rules
type Decision struct {
	Eligible        bool
	Reason          string
	SessionCount    int64
	DaysSincePrompt int // -1 when no prompt was ever recorded
}

// Result describes what RequestShow did
type Result struct {
	Shown    bool
	Reason   string
	Response types.ReviewResponse

	// StoreReviewErr is set when the follow-up store review request failed
	StoreReviewErr error
}

// Gate enforces review cadence from durable counters
type Gate struct {
	store  storage.Store
	config Config
	now    func() time.Time
	logger zerolog.Logger
}

// NewGate creates a gate reading counters from store
func NewGate(store storage.Store, cfg Config) *Gate {
	return &Gate{
		store:  store,
		config: cfg,
		now:    time.Now,
		logger: log.WithComponent("review"),
	}
}

// WithClock replaces the time source
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Evaluate applies the cadence rules without side effects
func (g *Gate) Evaluate() Decision {
	sessions, err := storage.GetInt64(g.store, storage.KeySessionCount)
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to read session count")
		return Decision{Reason: ReasonStorageError, DaysSincePrompt: -1}
	}

	last, err := storage.GetInt64(g.store, storage.KeyLastReviewPrompt)
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to read last review prompt")
		return Decision{Reason: ReasonStorageError, SessionCount: sessions, DaysSincePrompt: -1}
	}

	d := Decision{SessionCount: sessions, DaysSincePrompt: -1}
	if last > 0 {
		d.DaysSincePrompt = int(g.now().Sub(time.UnixMilli(last)) / day)
	}

	switch {
	case sessions < int64(g.config.MinimumSessions):
		d.Reason = ReasonTooFewSessions
	case last > 0 && d.DaysSincePrompt < g.config.CooldownDays:
		d.Reason = ReasonCooldown
	default:
		d.Eligible = true
		d.Reason = ReasonEligible
	}
	return d
}

// CanShow reports whether the cadence rules currently allow a prompt
func (g *Gate) CanShow() bool {
	return g.Evaluate().Eligible
}

// RecordPrompt starts a new cooldown cycle at the current time
func (g *Gate) RecordPrompt() error {
	return storage.PutInt64(g.store, storage.KeyLastReviewPrompt, g.now().UnixMilli())
}

// RequestShow re-checks eligibility and, if allowed, asks the sentiment
// question. Any answer, dismissal included, consumes the cooldown. A
// positive answer is followed by a best-effort store review request.
// UI problems are reported through Result, never as an error.
func (g *Gate) RequestShow(ctx context.Context, presenter ui.Presenter) Result {
	decision := g.Evaluate()
	if !decision.Eligible {
		g.logger.Debug().
			Str("reason", decision.Reason).
			Int64("sessions", decision.SessionCount).
			Msg("Review prompt not eligible")
		return Result{Reason: decision.Reason}
	}

	if presenter == nil {
		return Result{Reason: ReasonNoActiveScreen}
	}

	response, err := presenter.PromptSentiment(ctx)
	if err != nil {
		if errors.Is(err, ui.ErrNoActiveScreen) {
			return Result{Reason: ReasonNoActiveScreen}
		}
		g.logger.Warn().Err(err).Msg("Review prompt failed")
		return Result{Reason: ReasonPromptFailed}
	}
	if response == nil {
		response = types.ReviewDismissed{}
	}

	if err := g.RecordPrompt(); err != nil {
		g.logger.Error().Err(err).Msg("Failed to record review prompt")
	}
	metrics.ReviewPrompts.WithLabelValues(response.String()).Inc()

	result := Result{Shown: true, Reason: ReasonEligible, Response: response}

	if _, ok := response.(types.ReviewPositive); ok {
		if err := presenter.RequestStoreReview(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("Store review request failed")
			result.StoreReviewErr = err
		}
	}

	return result
}
