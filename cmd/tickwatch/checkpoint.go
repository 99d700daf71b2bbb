package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rewired-gh/tickwatch/internal/config"
	"github.com/rewired-gh/tickwatch/internal/models"
	"github.com/rewired-gh/tickwatch/internal/storage"
	"github.com/spf13/cobra"
)

var (
	checkpointAsset  string
	checkpointAlerts int
	clearAlerts      bool
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or clear the stored session checkpoint",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored analysis state and recent alerts as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, asset, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		return showCheckpoint(cmd.OutOrStdout(), store, asset, checkpointAlerts)
	},
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored checkpoint so the next run starts fresh",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, asset, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		return clearCheckpoint(cmd.OutOrStdout(), store, asset, clearAlerts)
	},
}

func init() {
	checkpointCmd.PersistentFlags().StringVar(&checkpointAsset, "asset", "", "Asset to inspect (defaults to analysis.asset)")
	checkpointShowCmd.Flags().IntVar(&checkpointAlerts, "alerts", 10, "Number of recent alerts to include")
	checkpointClearCmd.Flags().BoolVar(&clearAlerts, "alerts", false, "Also clear the alert journal")
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointClearCmd)
}

func openStore() (*storage.Storage, string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	store, err := storage.New(cfg.Storage.MaxAlerts, cfg.Storage.DBPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open storage: %w", err)
	}
	asset := checkpointAsset
	if asset == "" {
		asset = cfg.Analysis.Asset
	}
	return store, asset, nil
}

type checkpointReport struct {
	Asset        string                `json:"asset"`
	Found        bool                  `json:"found"`
	SavedAt      *time.Time            `json:"saved_at,omitempty"`
	WindowTicks  int                   `json:"window_ticks"`
	LastTick     *models.Tick          `json:"last_tick,omitempty"`
	State        *models.AnalysisState `json:"state,omitempty"`
	RecentAlerts []models.Alert        `json:"recent_alerts"`
}

func showCheckpoint(w io.Writer, store *storage.Storage, asset string, alertLimit int) error {
	cp, err := store.LoadCheckpoint(asset)
	if err != nil {
		return err
	}
	report := checkpointReport{Asset: asset, RecentAlerts: []models.Alert{}}
	if cp != nil {
		report.Found = true
		report.SavedAt = &cp.SavedAt
		report.WindowTicks = len(cp.Window)
		report.State = &cp.State
		if len(cp.Window) > 0 {
			report.LastTick = &cp.Window[len(cp.Window)-1]
		}
	}
	if alertLimit > 0 {
		alerts, err := store.RecentAlerts(asset, alertLimit)
		if err != nil {
			return err
		}
		report.RecentAlerts = alerts
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func clearCheckpoint(w io.Writer, store *storage.Storage, asset string, alerts bool) error {
	if err := store.DeleteCheckpoint(asset); err != nil {
		return err
	}
	fmt.Fprintf(w, "Cleared checkpoint for %s\n", asset)
	if alerts {
		if err := store.ClearAlerts(); err != nil {
			return err
		}
		fmt.Fprintln(w, "Cleared alert journal")
	}
	return nil
}
