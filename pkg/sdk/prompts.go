package sdk

import (
	"context"
	"errors"
	"maps"

	"github.com/cuemby/feelback/pkg/metrics"
	"github.com/cuemby/feelback/pkg/review"
	"github.com/cuemby/feelback/pkg/types"
	"github.com/cuemby/feelback/pkg/ui"
)

// Default intervention copy
const (
	DefaultInterventionTitle   = "Having trouble?"
	DefaultInterventionMessage = "Tell us what went wrong and we'll look into it."
)

// InterventionResult describes what ShowIntervention did
type InterventionResult struct {
	Shown    bool
	Reason   string
	Response types.InterventionResponse
}

// ShowReviewFlow asks for a store review when the user is not frustrated
// and the cadence rules allow it. A negative answer with text is captured
// as review feedback.
func (s *SDK) ShowReviewFlow(ctx context.Context) (review.Result, error) {
	if err := s.ready(); err != nil {
		return review.Result{}, err
	}

	if level := s.engine.Level(); level != types.LevelNone {
		s.enqueue(types.EventReviewPromptSkipped, map[string]any{
			"reason":            review.ReasonFrustrated,
			"frustration_level": string(level),
		})
		return review.Result{Reason: review.ReasonFrustrated}, nil
	}

	res := s.gate.RequestShow(ctx, s.currentPresenter())
	if !res.Shown {
		s.enqueue(types.EventReviewPromptSkipped, map[string]any{"reason": res.Reason})
		return res, nil
	}

	s.enqueue(types.EventReviewPromptShown, nil)
	s.enqueue(types.EventReviewPromptResponse, map[string]any{"response": res.Response.String()})

	switch resp := res.Response.(type) {
	case types.ReviewPositive:
		if res.StoreReviewErr != nil {
			s.enqueue(types.EventStoreReviewUnavailable, map[string]any{"error": res.StoreReviewErr.Error()})
		} else {
			s.enqueue(types.EventStoreReviewRequested, nil)
		}
	case types.ReviewNegative:
		if resp.Feedback != "" {
			if err := s.CaptureFeedback(ctx, types.FeedbackTypeReview, resp.Feedback, map[string]any{"source": "review_flow"}); err != nil {
				return res, err
			}
		}
	}

	return res, nil
}

// ShowIntervention offers the user a way to report what is frustrating
// them. Empty Title or Message fall back to the default copy; Level and
// Score are always the current values.
func (s *SDK) ShowIntervention(ctx context.Context, intervention types.Intervention) (InterventionResult, error) {
	if err := s.ready(); err != nil {
		return InterventionResult{}, err
	}

	if intervention.Title == "" {
		intervention.Title = DefaultInterventionTitle
	}
	if intervention.Message == "" {
		intervention.Message = DefaultInterventionMessage
	}
	state := s.engine.State()
	intervention.Level = state.Level
	intervention.Score = state.Score

	presenter := s.currentPresenter()
	if presenter == nil {
		return InterventionResult{Reason: review.ReasonNoActiveScreen}, nil
	}

	resp, err := presenter.PromptIntervention(ctx, intervention)
	if err != nil {
		if errors.Is(err, ui.ErrNoActiveScreen) {
			return InterventionResult{Reason: review.ReasonNoActiveScreen}, nil
		}
		s.logger.Warn().Err(err).Msg("Intervention prompt failed")
		return InterventionResult{Reason: review.ReasonPromptFailed}, nil
	}
	if resp == nil {
		resp = types.InterventionDismissed{}
	}

	metrics.Interventions.WithLabelValues(resp.String()).Inc()
	s.enqueue(types.EventInterventionShown, map[string]any{
		"frustration_level": string(intervention.Level),
		"frustration_score": intervention.Score,
	})
	s.enqueue(types.EventInterventionResponse, map[string]any{"response": resp.String()})

	if fb, ok := resp.(types.InterventionFeedback); ok && fb.Message != "" {
		if err := s.CaptureFeedback(ctx, types.FeedbackTypeIntervention, fb.Message, map[string]any{"source": "intervention"}); err != nil {
			return InterventionResult{Shown: true, Response: resp}, err
		}
	}

	return InterventionResult{Shown: true, Response: resp}, nil
}

// CaptureFeedback submits free-text feedback. It is sent in the background;
// if the collector cannot be reached the feedback is queued as an event so
// it is delivered with the next batch.
func (s *SDK) CaptureFeedback(ctx context.Context, feedbackType, message string, extra map[string]any) error {
	if err := s.ready(); err != nil {
		return err
	}
	if message == "" {
		return errors.New("feelback: feedback message is required")
	}
	if feedbackType == "" {
		feedbackType = types.FeedbackTypeGeneral
	}

	fbContext := maps.Clone(extra)
	if fbContext == nil {
		fbContext = make(map[string]any)
	}
	state := s.engine.State()
	fbContext["frustration_level"] = string(state.Level)
	fbContext["frustration_score"] = state.Score

	sessionID, userID := s.identity()
	fb := types.Feedback{
		Type:      feedbackType,
		Message:   message,
		SessionID: sessionID,
		DeviceID:  s.device.DeviceID,
		UserID:    userID,
		Context:   fbContext,
	}

	s.enqueue(types.EventFeedbackSubmitted, map[string]any{"type": feedbackType})

	go s.sendFeedback(fb)
	return nil
}

func (s *SDK) sendFeedback(fb types.Feedback) {
	err := s.transport.SendFeedback(s.ctx, fb)
	if err == nil {
		metrics.UpdateComponent(metrics.ComponentTransport, true, "")
		return
	}

	metrics.UpdateComponent(metrics.ComponentTransport, false, err.Error())
	s.logger.Warn().Err(err).Str("type", fb.Type).Msg("Feedback send failed, queued for retry")
	s.enqueue(types.EventFeedback, map[string]any{
		"type":    fb.Type,
		"message": fb.Message,
		"context": fb.Context,
	})
}
