/*
Package sdk is the entry point host applications use to embed feelback.

An SDK value owns one of each component: the frustration engine, the
durable event queue, the review gate, the repeating timers and the HTTP
transport. Create it with New, attach options, then call Init once:

	fb := sdk.New(
		sdk.WithPresenter(presenter),
		sdk.WithDevice(device.Info{Platform: "android", AppVersion: "3.2.0"}),
	)
	if err := fb.Init(ctx, apiKey, config.Default()); err != nil {
		return err
	}
	defer fb.Shutdown()

	fb.TrackScreen("checkout", nil)
	fb.TrackFailure("payment_declined", map[string]any{"provider": "stripe"})
	fb.RecordTouch(time.Now())

# Lifecycle

Every method returns ErrNotInitialized before Init and ErrShutdown after
Shutdown. A second Init is ignored with a warning. Init increments the
durable session counter, resolves the device id, restores any events left
in the queue by a previous process and starts two repeating jobs:

  - frustration decay every 30 seconds
  - queue flush every eventFlushIntervalMs

Shutdown cancels both jobs and any pending intervention, then writes the
final queue snapshot. It never waits on the network.

# Frustration

RecordTouch feeds rage-tap detection, TrackFailure and TrackSuccess move
the score, and decay lowers it over time. Each transition is queued as a
frustration_rage_tap or frustration_level_changed event and level changes
are delivered to OnFrustrationChange listeners on the calling goroutine.

When enableAutoIntervention is set and the score reaches
frustrationThreshold, one intervention is scheduled after
interventionDelayMs. It is skipped if frustration has subsided by then, and
no further automatic intervention is scheduled until the score drops below
the threshold again.

# Review and feedback

ShowReviewFlow refuses while the level is above NONE, then defers to the
review gate for session and cooldown rules. A negative answer with text,
and intervention feedback, go through CaptureFeedback, which posts to the
collector in the background and falls back to a queued feedback event when
the post fails.

# Errors

Only usage errors are returned: calls outside the Init/Shutdown window,
missing required arguments and invalid configuration. Storage, transport
and UI failures are logged, reflected in Health and never surfaced.
*/
package sdk
