package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrel-flight/kestrel/internal/daemon"
	"github.com/kestrel-flight/kestrel/internal/domain"
)

func init() {
	simulateCmd.Flags().IntVar(&simTicks, "ticks", 600, "Number of ticks to run")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 1, "Simulated hardware seed")
	simulateCmd.Flags().BoolVar(&simNominal, "nominal", true, "Transition to NOMINAL after boot")
	rootCmd.AddCommand(simulateCmd)
}

var (
	simTicks   int
	simSeed    int64
	simNominal bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the kernel offline for a fixed number of ticks",
	Long: `Boot the flight computer against simulated hardware, step the tick
executive a fixed number of times without wall-clock pacing, and print
the resulting kernel state. Useful for deterministic replay of a seed.`,
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := daemon.DefaultConfig()
	cfg.Sim.Seed = simSeed
	cfg.API.Metrics = false

	dir, err := os.MkdirTemp("", "kestrel-sim-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	cfg.Telemetry.Dir = dir

	fc, err := daemon.New(cfg, rootCmd.Version)
	if err != nil {
		return err
	}
	defer fc.Close()
	fc.Boot()

	if simNominal {
		if err := fc.RequestTransition(domain.ModeNominal); err != nil {
			return err
		}
	}

	ctx := context.Background()
	for i := 0; i < simTicks; i++ {
		fc.Exec.Tick(ctx)
	}

	stats := fc.Exec.Stats()
	fmt.Printf("simulated %d ticks (seed %d)\n", stats.Tick, simSeed)
	fmt.Printf("  mode:   %s\n", fc.Current())
	fmt.Printf("  runs:   %d (%d faults, %d disabled)\n", stats.TotalRuns, stats.TotalFaults, stats.TotalDisabled)

	for _, s := range fc.Exec.Snapshot() {
		fmt.Printf("  %-10s %6.2f Hz  pri %d  due tick %d\n", s.Name, s.FrequencyHz, s.Priority, s.NextDueTick)
	}

	streams, err := fc.Store.Streams()
	if err != nil {
		return err
	}
	fmt.Println("  telemetry:")
	for _, st := range streams {
		fmt.Printf("    %-10s %d records\n", st.Name, st.Records)
	}
	return nil
}
