package sdk

import (
	"time"

	"github.com/cuemby/feelback/pkg/events"
	"github.com/cuemby/feelback/pkg/metrics"
	"github.com/cuemby/feelback/pkg/types"
)

// RecordTouch feeds one tap into rage-tap detection. A zero ts means now.
// It does nothing when automatic frustration detection is disabled.
func (s *SDK) RecordTouch(ts time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	if !s.config.EnableAutoFrustrationDetection {
		return nil
	}
	if ts.IsZero() {
		ts = s.now()
	}
	s.engine.RecordTap(ts)
	s.evaluateIntervention()
	return nil
}

// FrustrationLevel returns the current level
func (s *SDK) FrustrationLevel() (types.FrustrationLevel, error) {
	if err := s.ready(); err != nil {
		return types.LevelNone, err
	}
	return s.engine.Level(), nil
}

// FrustrationScore returns the current score in [0,100]
func (s *SDK) FrustrationScore() (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.engine.Score(), nil
}

// OnFrustrationChange registers fn for level changes. It is called
// synchronously on the goroutine that caused the change.
func (s *SDK) OnFrustrationChange(fn events.Handler) (events.Subscription, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.changes.Subscribe(fn), nil
}

// RemoveFrustrationListener cancels a subscription from OnFrustrationChange
func (s *SDK) RemoveFrustrationListener(sub events.Subscription) {
	s.changes.Unsubscribe(sub)
}

// onFrustrationEvent turns engine signals into telemetry and notifications
func (s *SDK) onFrustrationEvent(e events.Event) {
	metrics.FrustrationScore.Set(float64(e.Score))

	switch e.Type {
	case events.EventRageTap:
		metrics.RageTaps.Inc()
		s.enqueue(types.EventFrustrationRageTap, map[string]any{
			"frustration_score": e.Score,
			"frustration_level": string(e.Level),
		})

	case events.EventLevelChanged:
		metrics.LevelChanges.WithLabelValues(string(e.Level)).Inc()
		s.enqueue(types.EventFrustrationLevel, map[string]any{
			"previous_level":    string(e.PreviousLevel),
			"frustration_level": string(e.Level),
			"frustration_score": e.Score,
			"reason":            e.Reason,
		})
		s.logger.Debug().
			Str("from", string(e.PreviousLevel)).
			Str("to", string(e.Level)).
			Int("score", e.Score).
			Str("reason", e.Reason).
			Msg("Frustration level changed")

		s.changes.Publish(e)
	}
}

// publishReset reports the drop to NONE caused by Reset
func (s *SDK) publishReset(previous types.FrustrationLevel) {
	s.onFrustrationEvent(events.Event{
		Type:          events.EventLevelChanged,
		Timestamp:     s.now(),
		Level:         types.LevelNone,
		PreviousLevel: previous,
		Score:         0,
		Reason:        "reset",
	})
}

// decayTick runs on the decay timer
func (s *SDK) decayTick() {
	s.engine.ApplyDecay()
	s.evaluateIntervention()
}

// evaluateIntervention compares the score with the configured threshold
// after every score change. Below it, automatic intervention is rearmed; at
// or above it, a single delayed intervention is scheduled if armed. Once one
// is shown no other is scheduled until the score falls below the threshold.
func (s *SDK) evaluateIntervention() {
	if !s.config.EnableAutoIntervention {
		return
	}
	if s.engine.Score() < s.config.FrustrationThreshold {
		s.rearmIntervention()
		return
	}

	s.interventionMu.Lock()
	defer s.interventionMu.Unlock()

	if s.interventionTimer != nil || !s.interventionArmed {
		return
	}
	s.interventionTimer = time.AfterFunc(s.config.InterventionDelay(), s.fireIntervention)
	s.logger.Debug().Dur("delay", s.config.InterventionDelay()).Msg("Intervention scheduled")
}

func (s *SDK) fireIntervention() {
	s.interventionMu.Lock()
	s.interventionTimer = nil
	s.interventionMu.Unlock()

	if s.ready() != nil {
		return
	}
	score := s.engine.Score()
	if score < s.config.FrustrationThreshold {
		s.logger.Debug().Int("score", score).Msg("Frustration subsided, intervention skipped")
		return
	}

	s.interventionMu.Lock()
	s.interventionArmed = false
	s.interventionMu.Unlock()

	res, err := s.ShowIntervention(s.ctx, types.Intervention{})
	if err != nil || !res.Shown {
		if err != nil {
			s.logger.Warn().Err(err).Msg("Automatic intervention failed")
		}
		s.rearmIntervention()
	}
}

func (s *SDK) rearmIntervention() {
	s.interventionMu.Lock()
	defer s.interventionMu.Unlock()
	s.interventionArmed = true
}

func (s *SDK) cancelIntervention() {
	s.interventionMu.Lock()
	defer s.interventionMu.Unlock()

	if s.interventionTimer != nil {
		s.interventionTimer.Stop()
		s.interventionTimer = nil
	}
}
