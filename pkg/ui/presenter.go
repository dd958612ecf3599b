// Package ui defines what the SDK needs from the host application's UI layer.
package ui

import (
	"context"
	"errors"
	"sync"

	"github.com/cuemby/feelback/pkg/types"
)

// ErrNoActiveScreen is returned when there is no screen to host a prompt
var ErrNoActiveScreen = errors.New("no active screen")

// Presenter shows SDK prompts on behalf of the host application. Each
// method blocks until the user answers or ctx is done.
type Presenter interface {
	// PromptSentiment asks the review pre-prompt question
	PromptSentiment(ctx context.Context) (types.ReviewResponse, error)

	// RequestStoreReview opens the platform's native review sheet
	RequestStoreReview(ctx context.Context) error

	// PromptIntervention offers a frustrated user a way to give direct feedback
	PromptIntervention(ctx context.Context, intervention types.Intervention) (types.InterventionResponse, error)
}

// Scripted is a Presenter that replays fixed answers. It backs the CLI
// simulator and tests and is safe for concurrent use.
type Scripted struct {
	mu sync.Mutex

	sentiment      types.ReviewResponse
	intervention   types.InterventionResponse
	err            error
	storeReviewErr error

	calls            Calls
	lastIntervention types.Intervention
}

// Calls counts how often each prompt was shown
type Calls struct {
	Sentiment    int
	Intervention int
	StoreReview  int
}

// NewScripted answers sentiment prompts with sentiment and interventions
// with intervention. Nil answers mean the prompt was dismissed.
func NewScripted(sentiment types.ReviewResponse, intervention types.InterventionResponse) *Scripted {
	if sentiment == nil {
		sentiment = types.ReviewDismissed{}
	}
	if intervention == nil {
		intervention = types.InterventionDismissed{}
	}
	return &Scripted{sentiment: sentiment, intervention: intervention}
}

// FailWith makes every prompt return err
func (s *Scripted) FailWith(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

// FailStoreReview makes RequestStoreReview return err
func (s *Scripted) FailStoreReview(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeReviewErr = err
	return s
}

// Calls returns the prompt counters
func (s *Scripted) Calls() Calls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastIntervention returns the most recent intervention shown
func (s *Scripted) LastIntervention() types.Intervention {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastIntervention
}

// PromptSentiment implements Presenter
func (s *Scripted) PromptSentiment(ctx context.Context) (types.ReviewResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.calls.Sentiment++
	return s.sentiment, nil
}

// RequestStoreReview implements Presenter
func (s *Scripted) RequestStoreReview(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls.StoreReview++
	return s.storeReviewErr
}

// PromptIntervention implements Presenter
func (s *Scripted) PromptIntervention(ctx context.Context, intervention types.Intervention) (types.InterventionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.calls.Intervention++
	s.lastIntervention = intervention
	return s.intervention, nil
}
