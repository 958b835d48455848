package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/astroseed/gosph/internal/config"
	"github.com/astroseed/gosph/internal/runs"
	"github.com/astroseed/gosph/internal/sim"
	"github.com/astroseed/gosph/internal/snapshot"
)

var (
	configFile string
	runsDir    string
	particles  int
	integrator string
	duration   float64
	compact    bool
)

// exitFailure is the status of any failed command, the unsigned byte
// rendering of exit(-1).
const exitFailure = 255

func main() {
	rootCmd := &cobra.Command{
		Use:   "gosph",
		Short: "particle store and evaluation pipeline toolkit",
	}

	infoCmd := &cobra.Command{
		Use:   "info [snapshot]",
		Short: "print snapshot header fields",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the reference gravity simulation",
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "run configuration file")
	runCmd.Flags().IntVar(&particles, "particles", 0, "override particle count")
	runCmd.Flags().StringVar(&integrator, "integrator", "", "override integrator scheme")
	runCmd.Flags().Float64Var(&duration, "time", 0, "override run duration")
	runCmd.Flags().BoolVar(&compact, "compact", false, "write compact snapshots")

	validateCmd := &cobra.Command{
		Use:   "validate [snapshot]",
		Short: "read the full snapshot payload and audit the store",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list recorded runs",
		RunE:  runList,
	}

	rootCmd.PersistentFlags().StringVar(&runsDir, "runs-dir", "runs", "runs directory")
	rootCmd.AddCommand(infoCmd, runCmd, validateCmd, runsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitFailure)
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	info, err := snapshot.ReadInfo(args[0])
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", args[0], err)
	}

	mode := "precise"
	if info.Compact {
		mode = "compact"
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "version\t%d\n", info.Version)
	fmt.Fprintf(w, "mode\t%s\n", mode)
	fmt.Fprintf(w, "particles\t%d\n", info.ParticleCount)
	fmt.Fprintf(w, "attractors\t%d\n", info.AttractorCount)
	fmt.Fprintf(w, "materials\t%d\n", info.MaterialCount)
	fmt.Fprintf(w, "quantities\t%d\n", info.QuantityCount)
	fmt.Fprintf(w, "run time\t%g\n", info.RunTime)
	fmt.Fprintf(w, "time step\t%g\n", info.TimeStep)
	if !math.IsNaN(info.Wallclock) {
		fmt.Fprintf(w, "wallclock\t%g ms\n", info.Wallclock)
	}
	if info.RunType != snapshot.NoRunType {
		fmt.Fprintf(w, "run type\t%d\n", info.RunType)
	}
	if info.BuildDate != "" {
		fmt.Fprintf(w, "build\t%s\n", info.BuildDate)
	}
	return w.Flush()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if particles > 0 {
		cfg.Run.Particles = particles
	}
	if integrator != "" {
		cfg.Timestepping.Integrator = integrator
	}
	if duration > 0 {
		cfg.Run.Duration = duration
	}
	if compact {
		cfg.Output.Compact = true
	}
	cfg.Output.Directory = runsDir

	result, err := sim.NewRunner(cfg, nil).Run()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s finished: %d steps, %d snapshots\n",
		result.RunID, result.Steps, len(result.Snapshots))
	for name, value := range result.Integrals {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s = %g\n", name, value)
	}
	if len(result.DtHistory) > 1 {
		fmt.Fprintln(cmd.OutOrStdout(), "\ntimestep history:")
		graph := asciigraph.Plot(result.DtHistory,
			asciigraph.Height(10),
			asciigraph.Width(72),
			asciigraph.Caption("dt per step"))
		fmt.Fprintln(cmd.OutOrStdout(), graph)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	store, info, err := snapshot.Load(args[0])
	if err != nil {
		return fmt.Errorf("cannot load %s: %w", args[0], err)
	}
	if err := store.IsValid(0); err != nil {
		return fmt.Errorf("%s: store audit failed: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d particles, %d quantities, %d materials)\n",
		args[0], info.ParticleCount, info.QuantityCount, info.MaterialCount)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	metas, err := runs.New(runsDir).List()
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no recorded runs")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tINTEGRATOR\tPARTICLES\tSTEPS\tDURATION\tSNAPSHOTS")
	for _, m := range metas {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%g\t%d\n",
			m.ID, m.Integrator, m.Particles, m.Steps, m.Duration, len(m.Snapshots))
	}
	return w.Flush()
}
