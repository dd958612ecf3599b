package sdk

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuemby/feelback/pkg/collector"
	"github.com/cuemby/feelback/pkg/config"
	"github.com/cuemby/feelback/pkg/events"
	"github.com/cuemby/feelback/pkg/queue"
	"github.com/cuemby/feelback/pkg/review"
	"github.com/cuemby/feelback/pkg/storage"
	"github.com/cuemby/feelback/pkg/types"
	"github.com/cuemby/feelback/pkg/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiKey = "fb_test_key"

type harness struct {
	sdk       *SDK
	store     storage.Store
	sink      *collector.Server
	server    *httptest.Server
	presenter *ui.Scripted
}

func testConfig(endpoint string) config.Config {
	cfg := config.Default()
	cfg.Endpoint = endpoint
	cfg.StorageDriver = config.StorageMemory
	cfg.EventBatchSize = 100
	cfg.EventFlushIntervalMs = int(time.Hour / time.Millisecond)
	cfg.EnableAutoIntervention = false
	return cfg
}

func newHarness(t *testing.T, presenter *ui.Scripted, tweak func(*config.Config)) *harness {
	t.Helper()

	sink := collector.NewServer(apiKey)
	server := httptest.NewServer(sink.Handler())
	t.Cleanup(server.Close)

	store := storage.NewMemoryStore()
	opts := []Option{WithStore(store), WithLogOutput(io.Discard)}
	if presenter != nil {
		opts = append(opts, WithPresenter(presenter))
	}

	cfg := testConfig(server.URL)
	if tweak != nil {
		tweak(&cfg)
	}

	s := New(opts...)
	require.NoError(t, s.Init(context.Background(), apiKey, cfg))
	t.Cleanup(func() { _ = s.Shutdown() })

	return &harness{sdk: s, store: store, sink: sink, server: server, presenter: presenter}
}

func queuedTypes(s *SDK) []string {
	var out []string
	for _, e := range s.queue.Snapshot() {
		out = append(out, e.EventType)
	}
	return out
}

func TestCallsBeforeInit(t *testing.T) {
	s := New(WithLogOutput(io.Discard))
	ctx := context.Background()

	assert.ErrorIs(t, s.Track("tap", nil), ErrNotInitialized)
	assert.ErrorIs(t, s.TrackScreen("home", nil), ErrNotInitialized)
	assert.ErrorIs(t, s.TrackFailure("x", nil), ErrNotInitialized)
	assert.ErrorIs(t, s.TrackSuccess(), ErrNotInitialized)
	assert.ErrorIs(t, s.Identify("u", nil), ErrNotInitialized)
	assert.ErrorIs(t, s.Reset(), ErrNotInitialized)
	assert.ErrorIs(t, s.Flush(ctx), ErrNotInitialized)
	assert.ErrorIs(t, s.RecordTouch(time.Now()), ErrNotInitialized)
	assert.ErrorIs(t, s.CaptureFeedback(ctx, "general", "hi", nil), ErrNotInitialized)

	_, err := s.ShowReviewFlow(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.ShowIntervention(ctx, types.Intervention{})
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.FrustrationLevel()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.FrustrationScore()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.OnFrustrationChange(func(events.Event) {})
	assert.ErrorIs(t, err, ErrNotInitialized)

	assert.NoError(t, s.Shutdown())
}

func TestInitValidation(t *testing.T) {
	s := New(WithStore(storage.NewMemoryStore()), WithLogOutput(io.Discard))
	assert.Error(t, s.Init(context.Background(), "", config.Default()))

	bad := config.Default()
	bad.EventBatchSize = 0
	assert.Error(t, s.Init(context.Background(), apiKey, bad))

	assert.ErrorIs(t, s.Track("x", nil), ErrNotInitialized)
}

func TestDoubleInitIsNoop(t *testing.T) {
	h := newHarness(t, nil, nil)

	first, err := h.sdk.SessionID()
	require.NoError(t, err)

	require.NoError(t, h.sdk.Init(context.Background(), apiKey, testConfig(h.server.URL)))

	second, err := h.sdk.SessionID()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	sessions, err := storage.GetInt64(h.store, storage.KeySessionCount)
	require.NoError(t, err)
	assert.EqualValues(t, 1, sessions)
}

func TestRageTapScenario(t *testing.T) {
	h := newHarness(t, nil, nil)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	for ms := 0; ms <= 1000; ms += 200 {
		require.NoError(t, h.sdk.RecordTouch(base.Add(time.Duration(ms)*time.Millisecond)))
	}

	score, err := h.sdk.FrustrationScore()
	require.NoError(t, err)
	level, err := h.sdk.FrustrationLevel()
	require.NoError(t, err)
	assert.Equal(t, 30, score)
	assert.Equal(t, types.LevelLow, level)

	assert.Equal(t, []string{types.EventFrustrationRageTap, types.EventFrustrationLevel}, queuedTypes(h.sdk))
}

func TestRecordTouchIgnoredWhenDetectionDisabled(t *testing.T) {
	h := newHarness(t, nil, func(c *config.Config) { c.EnableAutoFrustrationDetection = false })
	base := time.Now()

	for i := 0; i < 10; i++ {
		require.NoError(t, h.sdk.RecordTouch(base.Add(time.Duration(i)*time.Millisecond)))
	}
	score, _ := h.sdk.FrustrationScore()
	assert.Zero(t, score)
}

func TestThreeFailuresScenario(t *testing.T) {
	h := newHarness(t, nil, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.sdk.TrackFailure("payment_declined", map[string]any{"attempt": i}))
	}

	score, _ := h.sdk.FrustrationScore()
	level, _ := h.sdk.FrustrationLevel()
	assert.Equal(t, 50, score)
	assert.Equal(t, types.LevelMedium, level)

	assert.Equal(t, []string{
		types.EventFailure,
		types.EventFailure,
		types.EventFrustrationLevel, // NONE -> LOW at 25
		types.EventFailure,
		types.EventFrustrationLevel, // LOW -> MEDIUM at 50
	}, queuedTypes(h.sdk))
}

func TestFlushDeliversToCollector(t *testing.T) {
	h := newHarness(t, nil, nil)

	require.NoError(t, h.sdk.Identify("user-42", map[string]any{"plan": "pro"}))
	require.NoError(t, h.sdk.TrackScreen("checkout", map[string]any{"items": 3}))
	require.NoError(t, h.sdk.Track("coupon_applied", map[string]any{"code": "SPRING"}))
	require.NoError(t, h.sdk.TrackSuccess())
	require.NoError(t, h.sdk.Flush(context.Background()))

	got := h.sink.Events()
	require.Len(t, got, 4)

	sessionID, _ := h.sdk.SessionID()
	for _, e := range got {
		assert.Equal(t, sessionID, e.SessionID)
		assert.Equal(t, h.sdk.device.DeviceID, e.DeviceID)
		assert.Equal(t, "user-42", e.UserID)
		_, err := time.Parse(types.TimestampLayout, e.ClientTimestamp)
		assert.NoError(t, err)
	}
	assert.Equal(t, types.EventIdentify, got[0].EventType)
	assert.Equal(t, "checkout", got[1].Payload["screen_name"])
	assert.Equal(t, "SPRING", got[2].Payload["code"])
	assert.Equal(t, "production", got[2].Payload["environment"])

	n, _ := h.sdk.QueueLen()
	assert.Zero(t, n)
}

func TestFlushFailureKeepsEvents(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.sink.SetFailStatus(http.StatusServiceUnavailable)

	require.NoError(t, h.sdk.Track("a", nil))
	require.NoError(t, h.sdk.Track("b", nil))
	require.NoError(t, h.sdk.Flush(context.Background()))

	assert.Equal(t, []string{"a", "b"}, queuedTypes(h.sdk))

	h.sink.SetFailStatus(0)
	require.NoError(t, h.sdk.Flush(context.Background()))
	assert.Len(t, h.sink.Events(), 2)
}

func TestQueueSurvivesRestart(t *testing.T) {
	sink := collector.NewServer(apiKey)
	server := httptest.NewServer(sink.Handler())
	defer server.Close()
	sink.SetFailStatus(http.StatusBadGateway)

	cfg := testConfig(server.URL)
	cfg.StorageDriver = config.StorageBolt
	cfg.DataDir = t.TempDir()

	first := New(WithLogOutput(io.Discard))
	require.NoError(t, first.Init(context.Background(), apiKey, cfg))
	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, first.Track(name, nil))
	}
	require.NoError(t, first.Flush(context.Background()))
	require.NoError(t, first.Shutdown())

	second := New(WithLogOutput(io.Discard))
	require.NoError(t, second.Init(context.Background(), apiKey, cfg))
	defer second.Shutdown()

	assert.Equal(t, []string{"one", "two", "three"}, queuedTypes(second))

	sessions, err := storage.GetInt64(second.store, storage.KeySessionCount)
	require.NoError(t, err)
	assert.EqualValues(t, 2, sessions)
	assert.Equal(t, first.device.DeviceID, second.device.DeviceID)

	sink.SetFailStatus(0)
	require.NoError(t, second.Flush(context.Background()))
	assert.Len(t, sink.Events(), 3)
}

func TestReviewFlowRefusedWhenFrustrated(t *testing.T) {
	p := ui.NewScripted(types.ReviewPositive{}, nil)
	h := newHarness(t, p, func(c *config.Config) { c.ReviewPromptMinimumSessions = 1 })

	require.NoError(t, h.sdk.TrackFailure("timeout", nil))
	require.NoError(t, h.sdk.TrackFailure("timeout", nil))

	res, err := h.sdk.ShowReviewFlow(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Shown)
	assert.Equal(t, review.ReasonFrustrated, res.Reason)
	assert.Zero(t, p.Calls().Sentiment)
}

func TestReviewFlowSessionThreshold(t *testing.T) {
	p := ui.NewScripted(types.ReviewPositive{}, nil)
	h := newHarness(t, p, nil)

	// first session of a fresh install
	res, err := h.sdk.ShowReviewFlow(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Shown)
	assert.Equal(t, review.ReasonTooFewSessions, res.Reason)

	require.NoError(t, storage.PutInt64(h.store, storage.KeySessionCount, 3))
	res, err = h.sdk.ShowReviewFlow(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Shown)
	assert.Equal(t, types.ReviewPositive{}, res.Response)
	assert.Equal(t, 1, p.Calls().StoreReview)

	assert.Contains(t, queuedTypes(h.sdk), types.EventStoreReviewRequested)

	// cooldown consumed
	res, err = h.sdk.ShowReviewFlow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, review.ReasonCooldown, res.Reason)
}

func TestReviewFlowWithoutScreen(t *testing.T) {
	h := newHarness(t, nil, func(c *config.Config) { c.ReviewPromptMinimumSessions = 1 })

	res, err := h.sdk.ShowReviewFlow(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Shown)
	assert.Equal(t, review.ReasonNoActiveScreen, res.Reason)

	h.sdk.SetPresenter(ui.NewScripted(types.ReviewNeutral{}, nil))
	res, err = h.sdk.ShowReviewFlow(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Shown)
}

func TestNegativeReviewCapturesFeedback(t *testing.T) {
	p := ui.NewScripted(types.ReviewNegative{Feedback: "export keeps failing"}, nil)
	h := newHarness(t, p, func(c *config.Config) { c.ReviewPromptMinimumSessions = 1 })
	require.NoError(t, h.sdk.Identify("user-7", nil))

	res, err := h.sdk.ShowReviewFlow(context.Background())
	require.NoError(t, err)
	require.True(t, res.Shown)

	require.Eventually(t, func() bool { return len(h.sink.Feedback()) == 1 }, 2*time.Second, 10*time.Millisecond)

	fb := h.sink.Feedback()[0].Feedback
	assert.Equal(t, types.FeedbackTypeReview, fb.Type)
	assert.Equal(t, "export keeps failing", fb.Message)
	assert.Equal(t, "user-7", fb.UserID)
	assert.Equal(t, "NONE", fb.Context["frustration_level"])
	assert.EqualValues(t, 0, fb.Context["frustration_score"])
	assert.Zero(t, p.Calls().StoreReview)
}

func TestCaptureFeedbackFallsBackToQueue(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.sink.SetFailStatus(http.StatusInternalServerError)

	require.NoError(t, h.sdk.TrackFailure("crash", nil))
	require.NoError(t, h.sdk.CaptureFeedback(context.Background(), "", "app froze", map[string]any{"screen": "editor"}))

	require.Eventually(t, func() bool {
		for _, e := range h.sdk.queue.Snapshot() {
			if e.EventType == types.EventFeedback {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	var queued types.QueuedEvent
	for _, e := range h.sdk.queue.Snapshot() {
		if e.EventType == types.EventFeedback {
			queued = e
		}
	}
	assert.Equal(t, types.FeedbackTypeGeneral, queued.Payload["type"])
	assert.Equal(t, "app froze", queued.Payload["message"])
	fbCtx := queued.Payload["context"].(map[string]any)
	assert.Equal(t, "editor", fbCtx["screen"])
	assert.Equal(t, 10, fbCtx["frustration_score"])

	assert.Error(t, h.sdk.CaptureFeedback(context.Background(), "general", "", nil))
}

func TestShowInterventionCapturesFeedback(t *testing.T) {
	p := ui.NewScripted(nil, types.InterventionFeedback{Message: "search returns nothing"})
	h := newHarness(t, p, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, h.sdk.TrackFailure("search_empty", nil))
	}

	res, err := h.sdk.ShowIntervention(context.Background(), types.Intervention{})
	require.NoError(t, err)
	assert.True(t, res.Shown)

	shown := p.LastIntervention()
	assert.Equal(t, DefaultInterventionTitle, shown.Title)
	assert.Equal(t, types.LevelMedium, shown.Level)
	assert.Equal(t, 50, shown.Score)

	require.Eventually(t, func() bool { return len(h.sink.Feedback()) == 1 }, 2*time.Second, 10*time.Millisecond)
	fb := h.sink.Feedback()[0].Feedback
	assert.Equal(t, types.FeedbackTypeIntervention, fb.Type)
	assert.Equal(t, "MEDIUM", fb.Context["frustration_level"])
}

func TestShowInterventionWithoutScreen(t *testing.T) {
	p := ui.NewScripted(nil, nil).FailWith(ui.ErrNoActiveScreen)
	h := newHarness(t, p, nil)

	res, err := h.sdk.ShowIntervention(context.Background(), types.Intervention{Title: "Stuck?"})
	require.NoError(t, err)
	assert.False(t, res.Shown)
	assert.Equal(t, review.ReasonNoActiveScreen, res.Reason)
}

func TestAutoIntervention(t *testing.T) {
	p := ui.NewScripted(nil, nil)
	h := newHarness(t, p, func(c *config.Config) {
		c.EnableAutoIntervention = true
		c.FrustrationThreshold = 40
		c.InterventionDelayMs = 20
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, h.sdk.TrackFailure("sync", nil))
	}
	require.Eventually(t, func() bool { return p.Calls().Intervention == 1 }, 2*time.Second, 10*time.Millisecond)

	// still frustrated: no second intervention
	require.NoError(t, h.sdk.TrackFailure("sync", nil))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, p.Calls().Intervention)
}

func TestAutoInterventionSkippedWhenFrustrationSubsides(t *testing.T) {
	p := ui.NewScripted(nil, nil)
	h := newHarness(t, p, func(c *config.Config) {
		c.EnableAutoIntervention = true
		c.FrustrationThreshold = 40
		c.InterventionDelayMs = 150
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, h.sdk.TrackFailure("sync", nil))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, h.sdk.TrackSuccess())
	}

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, p.Calls().Intervention)
}

func TestAutoInterventionRearmsBelowThresholdWithinLevel(t *testing.T) {
	p := ui.NewScripted(nil, nil)
	h := newHarness(t, p, func(c *config.Config) {
		c.EnableAutoIntervention = true
		c.FrustrationThreshold = 50
		c.InterventionDelayMs = 10
	})

	// 10 + 15 + 25 = 50
	for i := 0; i < 3; i++ {
		require.NoError(t, h.sdk.TrackFailure("sync", nil))
	}
	require.Eventually(t, func() bool { return p.Calls().Intervention == 1 }, 2*time.Second, 10*time.Millisecond)

	// 75, 60, 45: below the threshold while staying MEDIUM
	require.NoError(t, h.sdk.TrackFailure("sync", nil))
	require.NoError(t, h.sdk.TrackSuccess())
	require.NoError(t, h.sdk.TrackSuccess())
	level, _ := h.sdk.FrustrationLevel()
	assert.Equal(t, types.LevelMedium, level)

	// new streak: 55
	require.NoError(t, h.sdk.TrackFailure("sync", nil))
	score, _ := h.sdk.FrustrationScore()
	assert.Equal(t, 55, score)
	level, _ = h.sdk.FrustrationLevel()
	assert.Equal(t, types.LevelMedium, level)

	require.Eventually(t, func() bool { return p.Calls().Intervention == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestRepeatingJobsRegistered(t *testing.T) {
	h := newHarness(t, nil, nil)
	assert.ElementsMatch(t, []string{jobDecay, jobFlush}, h.sdk.repeater.Jobs())
}

func TestDecayTickLowersScoreAndRearms(t *testing.T) {
	p := ui.NewScripted(nil, nil)
	h := newHarness(t, p, func(c *config.Config) {
		c.EnableAutoIntervention = true
		c.FrustrationThreshold = 25
		c.InterventionDelayMs = 10
	})

	require.NoError(t, h.sdk.TrackFailure("sync", nil))
	require.NoError(t, h.sdk.TrackFailure("sync", nil))
	require.Eventually(t, func() bool { return p.Calls().Intervention == 1 }, 2*time.Second, 10*time.Millisecond)

	// 25 -> 20: below the threshold, still LOW
	h.sdk.decayTick()
	score, _ := h.sdk.FrustrationScore()
	assert.Equal(t, 20, score)

	// 20 -> 45 crosses again
	require.NoError(t, h.sdk.TrackFailure("sync", nil))
	require.Eventually(t, func() bool { return p.Calls().Intervention == 2 }, 2*time.Second, 10*time.Millisecond)

	h.sdk.decayTick()
	score, _ = h.sdk.FrustrationScore()
	assert.Equal(t, 40, score)
}

func TestOnFrustrationChangeAndReset(t *testing.T) {
	h := newHarness(t, nil, nil)

	var seen []events.Event
	sub, err := h.sdk.OnFrustrationChange(func(e events.Event) { seen = append(seen, e) })
	require.NoError(t, err)

	require.NoError(t, h.sdk.Identify("user-1", nil))
	require.NoError(t, h.sdk.TrackFailure("x", nil))
	require.NoError(t, h.sdk.TrackFailure("x", nil))
	require.Len(t, seen, 1)
	assert.Equal(t, types.LevelLow, seen[0].Level)

	before, _ := h.sdk.SessionID()
	require.NoError(t, h.sdk.Reset())
	after, _ := h.sdk.SessionID()
	assert.Equal(t, before, after)

	require.Len(t, seen, 2)
	assert.Equal(t, types.LevelNone, seen[1].Level)
	assert.Equal(t, types.LevelLow, seen[1].PreviousLevel)
	assert.Equal(t, "reset", seen[1].Reason)

	score, _ := h.sdk.FrustrationScore()
	assert.Zero(t, score)

	// identity cleared
	require.NoError(t, h.sdk.Track("after_reset", nil))
	snap := h.sdk.queue.Snapshot()
	last := snap[len(snap)-1]
	assert.Empty(t, last.UserID)
	assert.Equal(t, after, last.SessionID)

	h.sdk.RemoveFrustrationListener(sub)
	require.NoError(t, h.sdk.TrackFailure("x", nil))
	require.NoError(t, h.sdk.TrackFailure("x", nil))
	assert.Len(t, seen, 2)
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t, nil, nil)

	assert.Error(t, h.sdk.Track("", nil))
	assert.Error(t, h.sdk.TrackScreen("", nil))
	assert.Error(t, h.sdk.Identify("", nil))
}

func TestShutdown(t *testing.T) {
	h := newHarness(t, nil, nil)
	require.NoError(t, h.sdk.Track("before", nil))

	require.NoError(t, h.sdk.Shutdown())
	require.NoError(t, h.sdk.Shutdown())

	assert.ErrorIs(t, h.sdk.Track("after", nil), ErrShutdown)
	assert.NoError(t, h.sdk.Init(context.Background(), apiKey, testConfig(h.server.URL)))

	persisted, err := queue.LoadSnapshot(h.store)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "before", persisted[0].EventType)
}

func TestHealthReportsTransportFailure(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.sink.SetFailStatus(http.StatusServiceUnavailable)

	require.NoError(t, h.sdk.Track("x", nil))
	require.NoError(t, h.sdk.Flush(context.Background()))
	assert.Equal(t, "unhealthy", h.sdk.Health().Status)

	h.sink.SetFailStatus(0)
	require.NoError(t, h.sdk.Flush(context.Background()))
	assert.Equal(t, "healthy", h.sdk.Health().Status)
}
