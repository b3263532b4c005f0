package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	cmdCmd.Flags().StringVar(&cmdAPI, "api", "http://127.0.0.1:7400", "Ground API base URL")
	rootCmd.AddCommand(cmdCmd)
}

var cmdAPI string

var cmdCmd = &cobra.Command{
	Use:   "cmd NAME [ARGS...]",
	Short: "Uplink a command to the flight computer",
	Long: `Enqueue a command on the uplink FIFO. The COMMAND task executes it
inside the tick loop on its next due tick.

Examples:
  kestrel cmd SWITCH_TO_AUTONOMOUS_MODE DOWNLINK
  kestrel cmd SET_TASK_FREQUENCY IMU 2.0
  kestrel cmd REQUEST_TM_HEARTBEAT`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCmd,
}

func runCmd(cmd *cobra.Command, args []string) error {
	body, err := json.Marshal(map[string]any{
		"command": args[0],
		"args":    args[1:],
	})
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(cmdAPI+"/v1/commands", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("is the flight computer running? %w", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("uplink rejected (HTTP %d): %v", resp.StatusCode, out["error"])
	}

	fmt.Printf("queued %s as %v (depth %v)\n", args[0], out["id"], out["queue_depth"])
	return nil
}
