package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cuemby/feelback/pkg/queue"
	"github.com/cuemby/feelback/pkg/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the durable event queue",
}

var queueInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List events waiting for delivery",
	Long: `List the events persisted in the SDK's data directory, oldest first.
Events that were in flight when the process stopped are included.

Examples:
  feelback queue inspect --data-dir ./feelback-data
  feelback queue inspect -o yaml`,
	RunE: runQueueInspect,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every persisted event",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(storage.KeyEventQueue); err != nil {
			return fmt.Errorf("failed to clear queue: %v", err)
		}
		fmt.Println("✓ Queue cleared")
		return nil
	},
}

var countersCmd = &cobra.Command{
	Use:   "counters",
	Short: "Show session and review counters",
	RunE:  runCounters,
}

func init() {
	for _, c := range []*cobra.Command{queueInspectCmd, queueClearCmd, countersCmd} {
		c.Flags().String("data-dir", "", "SDK data directory (defaults to config dataDir)")
		c.Flags().String("storage", "", "Storage driver: bolt or sqlite (defaults to config storageDriver)")
	}
	queueInspectCmd.Flags().StringP("output", "o", "table", "Output format: table, json or yaml")

	queueCmd.AddCommand(queueInspectCmd)
	queueCmd.AddCommand(queueClearCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(countersCmd)
}

func openStore(cmd *cobra.Command) (storage.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.DataDir = dir
	}
	if driver, _ := cmd.Flags().GetString("storage"); driver != "" {
		cfg.StorageDriver = driver
	}

	store, err := storage.Open(cfg.StorageDriver, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store in %s: %v", cfg.StorageDriver, cfg.DataDir, err)
	}
	return store, nil
}

func runQueueInspect(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := queue.LoadSnapshot(store)
	if err != nil {
		return err
	}

	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(events)
	case "table":
	default:
		return fmt.Errorf("unknown output format %q", output)
	}

	if len(events) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTIMESTAMP\tTYPE\tSESSION\tUSER")
	for i, e := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, e.ClientTimestamp, e.EventType, e.SessionID, e.UserID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d events queued\n", len(events))
	return nil
}

func runCounters(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := storage.GetInt64(store, storage.KeySessionCount)
	if err != nil {
		return err
	}
	last, err := storage.GetInt64(store, storage.KeyLastReviewPrompt)
	if err != nil {
		return err
	}

	deviceID := "(not set)"
	data, err := store.Get(storage.KeyDeviceID)
	switch {
	case err == nil:
		deviceID = string(data)
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}

	fmt.Printf("Device ID:          %s\n", deviceID)
	fmt.Printf("Sessions:           %d\n", sessions)
	if last > 0 {
		at := time.UnixMilli(last).UTC()
		fmt.Printf("Last review prompt: %s (%d days ago)\n", at.Format(time.RFC3339), int(time.Since(at).Hours()/24))
	} else {
		fmt.Println("Last review prompt: never")
	}
	return nil
}
