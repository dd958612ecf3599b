package sdk

import (
	"errors"
	"maps"

	"github.com/cuemby/feelback/pkg/types"
)

// Track records a custom event
func (s *SDK) Track(eventType string, props map[string]any) error {
	if err := s.ready(); err != nil {
		return err
	}
	if eventType == "" {
		return errors.New("feelback: event type is required")
	}
	s.enqueue(eventType, props)
	return nil
}

// TrackScreen records a screen view
func (s *SDK) TrackScreen(name string, props map[string]any) error {
	if err := s.ready(); err != nil {
		return err
	}
	if name == "" {
		return errors.New("feelback: screen name is required")
	}

	payload := maps.Clone(props)
	if payload == nil {
		payload = make(map[string]any)
	}
	payload["screen_name"] = name
	s.enqueue(types.EventScreenView, payload)
	return nil
}

// TrackFailure records a failed user action and raises frustration
func (s *SDK) TrackFailure(reason string, ctx map[string]any) error {
	if err := s.ready(); err != nil {
		return err
	}

	payload := maps.Clone(ctx)
	if payload == nil {
		payload = make(map[string]any)
	}
	payload["reason"] = reason
	s.enqueue(types.EventFailure, payload)

	s.engine.RecordFailure(reason)
	s.evaluateIntervention()
	return nil
}

// TrackSuccess records a successful user action and relieves frustration
func (s *SDK) TrackSuccess() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.enqueue(types.EventSuccess, nil)
	s.engine.RecordSuccess()
	s.evaluateIntervention()
	return nil
}

// Identify attaches a user id and traits to all later events
func (s *SDK) Identify(userID string, traits map[string]any) error {
	if err := s.ready(); err != nil {
		return err
	}
	if userID == "" {
		return errors.New("feelback: user id is required")
	}

	s.mu.Lock()
	s.userID = userID
	s.traits = maps.Clone(traits)
	s.mu.Unlock()

	payload := map[string]any{}
	if len(traits) > 0 {
		payload["traits"] = maps.Clone(traits)
	}
	s.enqueue(types.EventIdentify, payload)
	return nil
}

// Reset forgets the identified user and clears frustration. The session id
// lasts for the life of the process and is kept. Listeners see a level
// change when the level was not NONE.
func (s *SDK) Reset() error {
	if err := s.ready(); err != nil {
		return err
	}

	s.mu.Lock()
	s.userID = ""
	s.traits = nil
	s.mu.Unlock()

	s.cancelIntervention()
	previous := s.engine.Reset()
	s.rearmIntervention()
	if previous != types.LevelNone {
		s.publishReset(previous)
	}

	s.logger.Debug().Msg("Session reset")
	return nil
}

// identity returns the ids stamped on outgoing events
func (s *SDK) identity() (sessionID, userID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID, s.userID
}

func (s *SDK) enqueue(eventType string, props map[string]any) {
	sessionID, userID := s.identity()

	payload := maps.Clone(props)
	if payload == nil {
		payload = make(map[string]any)
	}
	payload["device"] = s.device.Context()
	payload["environment"] = s.config.Environment

	s.queue.Enqueue(types.QueuedEvent{
		EventType:       eventType,
		SessionID:       sessionID,
		DeviceID:        s.device.DeviceID,
		ClientTimestamp: types.FormatTimestamp(s.now()),
		Payload:         payload,
		UserID:          userID,
	})
}
