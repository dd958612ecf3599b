package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/feelback/pkg/collector"
	"github.com/spf13/cobra"
)

var collectorCmd = &cobra.Command{
	Use:   "collector",
	Short: "Run a local in-memory collector",
	Long: `Run a local collector that accepts event batches and feedback the same
way the hosted service does. Useful for developing against the SDK offline.

Examples:
  # Accept any bearer token on :8080
  feelback collector

  # Require a specific key and fail every request with 503
  feelback collector --api-key fb_dev --fail-status 503`,
	RunE: runCollector,
}

func init() {
	collectorCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address")
	collectorCmd.Flags().String("api-key", "", "Required bearer token (empty accepts any)")
	collectorCmd.Flags().Int("fail-status", 0, "Answer every /v1 request with this status")

	rootCmd.AddCommand(collectorCmd)
}

func runCollector(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	apiKey, _ := cmd.Flags().GetString("api-key")
	failStatus, _ := cmd.Flags().GetInt("fail-status")

	srv := collector.NewServer(apiKey)
	if failStatus != 0 {
		srv.SetFailStatus(failStatus)
	}
	if err := srv.Start(addr); err != nil {
		return fmt.Errorf("failed to start collector: %v", err)
	}

	fmt.Printf("Collector listening on http://%s\n", addr)
	fmt.Println("  POST /v1/events")
	fmt.Println("  POST /v1/feedback")
	fmt.Println("  GET  /health, /metrics")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop collector: %v", err)
	}

	fmt.Printf("✓ Received %d events and %d feedback records\n", len(srv.Events()), len(srv.Feedback()))
	return nil
}
