package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/feelback/pkg/collector"
	"github.com/cuemby/feelback/pkg/device"
	"github.com/cuemby/feelback/pkg/events"
	"github.com/cuemby/feelback/pkg/sdk"
	"github.com/cuemby/feelback/pkg/types"
	"github.com/cuemby/feelback/pkg/ui"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive a scripted session through the SDK",
	Long: `Run one session through the SDK: rage taps, failures and successes,
followed by the review flow with a scripted answer, then flush.

Examples:
  # Against a collector started in-process
  feelback simulate --local --taps 6 --failures 3

  # Against a running collector, answering the review prompt negatively
  feelback simulate --api-key fb_dev --review negative --feedback "too slow"`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().String("api-key", "fb_local", "API key sent as bearer token")
	simulateCmd.Flags().Bool("local", false, "Start an in-process collector and send to it")
	simulateCmd.Flags().String("local-addr", "127.0.0.1:18080", "Listen address for --local")
	simulateCmd.Flags().Int("taps", 0, "Taps to send 100ms apart")
	simulateCmd.Flags().Int("failures", 0, "Consecutive failures to track")
	simulateCmd.Flags().Int("successes", 0, "Successes to track after the failures")
	simulateCmd.Flags().String("review", "dismissed", "Review answer: positive, neutral, negative or dismissed")
	simulateCmd.Flags().String("feedback", "", "Text attached to a negative review answer")

	rootCmd.AddCommand(simulateCmd)
}

func parseReview(answer, text string) (types.ReviewResponse, error) {
	switch answer {
	case "positive":
		return types.ReviewPositive{}, nil
	case "neutral":
		return types.ReviewNeutral{}, nil
	case "negative":
		return types.ReviewNegative{Feedback: text}, nil
	case "dismissed", "":
		return types.ReviewDismissed{}, nil
	default:
		return nil, fmt.Errorf("unknown review answer %q", answer)
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	apiKey, _ := cmd.Flags().GetString("api-key")
	local, _ := cmd.Flags().GetBool("local")
	localAddr, _ := cmd.Flags().GetString("local-addr")
	taps, _ := cmd.Flags().GetInt("taps")
	failures, _ := cmd.Flags().GetInt("failures")
	successes, _ := cmd.Flags().GetInt("successes")
	answer, _ := cmd.Flags().GetString("review")
	text, _ := cmd.Flags().GetString("feedback")

	response, err := parseReview(answer, text)
	if err != nil {
		return err
	}

	var sink *collector.Server
	if local {
		sink = collector.NewServer(apiKey)
		if err := sink.Start(localAddr); err != nil {
			return err
		}
		defer sink.Stop(context.Background())
		cfg.Endpoint = "http://" + localAddr
		// give the listener a moment to bind
		time.Sleep(50 * time.Millisecond)
	}

	presenter := ui.NewScripted(response, types.InterventionFeedback{Message: text})
	fb := sdk.New(
		sdk.WithPresenter(presenter),
		sdk.WithDevice(device.Info{Platform: "cli", AppVersion: Version}),
	)

	ctx := context.Background()
	if err := fb.Init(ctx, apiKey, cfg); err != nil {
		return fmt.Errorf("failed to initialize SDK: %v", err)
	}
	defer fb.Shutdown()

	sessionID, _ := fb.SessionID()
	fmt.Printf("Session %s\n", sessionID)
	fmt.Printf("  Endpoint: %s\n", cfg.Endpoint)
	fmt.Printf("  Storage: %s (%s)\n", cfg.StorageDriver, cfg.DataDir)
	fmt.Println()

	fb.OnFrustrationChange(func(e events.Event) {
		fmt.Printf("  frustration %s -> %s (score %d, %s)\n", e.PreviousLevel, e.Level, e.Score, e.Reason)
	})

	start := time.Now()
	for i := 0; i < taps; i++ {
		_ = fb.RecordTouch(start.Add(time.Duration(i) * 100 * time.Millisecond))
	}
	for i := 0; i < failures; i++ {
		_ = fb.TrackFailure("simulated_failure", map[string]any{"attempt": i + 1})
	}
	for i := 0; i < successes; i++ {
		_ = fb.TrackSuccess()
	}

	score, _ := fb.FrustrationScore()
	level, _ := fb.FrustrationLevel()
	fmt.Printf("Frustration: %d (%s)\n", score, level)

	res, err := fb.ShowReviewFlow(ctx)
	if err != nil {
		return err
	}
	if res.Shown {
		fmt.Printf("Review prompt shown, answer: %s\n", res.Response)
	} else {
		fmt.Printf("Review prompt not shown: %s\n", res.Reason)
	}

	if err := fb.Flush(ctx); err != nil {
		return err
	}
	queued, _ := fb.QueueLen()
	fmt.Printf("Events still queued: %d\n", queued)

	health := fb.Health()
	fmt.Printf("Health: %s\n", health.Status)
	for name, status := range health.Components {
		fmt.Printf("  %s: %s\n", name, status)
	}

	if sink != nil {
		// feedback is posted in the background
		time.Sleep(200 * time.Millisecond)
		fmt.Printf("Collector received %d events and %d feedback records\n", len(sink.Events()), len(sink.Feedback()))
	}
	return nil
}
