package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	statusCmd.Flags().StringVar(&apiBase, "api", "http://127.0.0.1:7400", "Ground API base URL")
	rootCmd.AddCommand(statusCmd)
}

var apiBase string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show kernel status, tasks, and device health",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	var status struct {
		Version string `json:"version"`
		Mode    string `json:"mode"`
		Tick    uint64 `json:"tick"`
		Uptime  int64  `json:"uptime_seconds"`
		Active  int    `json:"tasks_active"`
		Runs    int64  `json:"total_runs"`
		Faults  int64  `json:"total_faults"`
		Queue   int    `json:"queue_depth"`
	}
	if err := getJSON(client, apiBase+"/v1/status", &status); err != nil {
		return err
	}

	fmt.Printf("kestrel %s\n", status.Version)
	fmt.Printf("  mode:    %s\n", status.Mode)
	fmt.Printf("  tick:    %d (up %ds)\n", status.Tick, status.Uptime)
	fmt.Printf("  tasks:   %d active, %d runs, %d faults\n", status.Active, status.Runs, status.Faults)
	fmt.Printf("  uplink:  %d pending\n", status.Queue)

	var tasks struct {
		Tasks []struct {
			Name        string  `json:"name"`
			FrequencyHz float64 `json:"frequency_hz"`
			Priority    int     `json:"priority"`
			Faults      int     `json:"consecutive_faults"`
			Enabled     bool    `json:"enabled"`
		} `json:"tasks"`
	}
	if err := getJSON(client, apiBase+"/v1/tasks", &tasks); err != nil {
		return err
	}

	fmt.Println("\n  TASK        HZ     PRI  FAULTS  STATE")
	for _, t := range tasks.Tasks {
		state := "on"
		if !t.Enabled {
			state = "DISABLED"
		}
		fmt.Printf("  %-10s %6.2f  %3d  %6d  %s\n", t.Name, t.FrequencyHz, t.Priority, t.Faults, state)
	}

	var devices struct {
		Devices []struct {
			Name       string `json:"name"`
			ASIL       int    `json:"asil"`
			ErrorCount int    `json:"error_count"`
			Status     uint8  `json:"status"`
		} `json:"devices"`
	}
	if err := getJSON(client, apiBase+"/v1/devices", &devices); err != nil {
		return err
	}

	fmt.Println("\n  DEVICE         ASIL  ERRORS  STATUS")
	statusNames := [...]string{"OK", "DEGRADED", "DEAD"}
	for _, d := range devices.Devices {
		name := "?"
		if int(d.Status) < len(statusNames) {
			name = statusNames[d.Status]
		}
		fmt.Printf("  %-14s %4d  %6d  %s\n", d.Name, d.ASIL, d.ErrorCount, name)
	}
	return nil
}

func getJSON(client *http.Client, url string, v any) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("is the flight computer running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: HTTP %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
