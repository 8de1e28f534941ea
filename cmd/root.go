package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/healthdes/healthdes/sim/scenario"
)

var (
	// CLI flags shared by run, sweep and validate
	configPath       string   // Scenario YAML file
	logLevel         string   // Log verbosity level
	seed             int64    // Overrides simulation.seed when set
	periods          int64    // Overrides simulation.periods when set
	traceLevel       string   // Overrides simulation.trace when set
	microenvironment string   // Overrides simulation.microenvironment when set
	outputDir        string   // Directory for report files; empty writes none
	formats          []string // Report formats written to outputDir
	parallel         int      // Concurrent simulations in a sweep
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "healthdes",
	Short: "Discrete-event simulator for airborne infection transmission",
}

// runCmd simulates the selected microenvironment
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation of a scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := loadScenario(cmd)

		s, err := scenario.New(cfg)
		if err != nil {
			logrus.Fatalf("Invalid scenario: %v", err)
		}
		res, err := s.Run(cmd.Context())
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		if err := writeOutputs(cmd.Context(), res, outputDir, formats); err != nil {
			logrus.Fatalf("Writing reports: %v", err)
		}
		printResults(os.Stdout, []*scenario.Result{res})
		logrus.Info("Simulation complete.")
	},
}

// sweepCmd simulates every microenvironment of a scenario
var sweepCmd = &cobra.Command{
	Use:   "sweep [microenvironment...]",
	Short: "Run one simulation per microenvironment, in parallel",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := loadScenario(cmd)

		results, err := scenario.Sweep(cmd.Context(), cfg, args, parallel)
		if err != nil {
			logrus.Fatalf("Sweep failed: %v", err)
		}
		for _, res := range results {
			if err := writeOutputs(cmd.Context(), res, outputDir, formats); err != nil {
				logrus.Fatalf("Writing reports of %s: %v", res.SimulationName, err)
			}
		}
		printResults(os.Stdout, results)
		logrus.Infof("Sweep complete: %d simulations.", len(results))
	},
}

// validateCmd checks a scenario without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a scenario file",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg := loadScenario(cmd)
		logrus.Infof("Scenario %q is valid: microenvironments %v", cfg.Simulation.Name, cfg.Names())
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadScenario reads --config and applies the flags the user set explicitly.
func loadScenario(cmd *cobra.Command) *scenario.Config {
	if configPath == "" {
		logrus.Fatalf("Scenario file not provided (--config). Exiting simulation.")
	}
	cfg, err := scenario.Load(configPath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	if err := applyOverrides(cmd, cfg); err != nil {
		logrus.Fatalf("%v", err)
	}
	return cfg
}

// applyOverrides copies explicitly set flags into cfg and revalidates it.
func applyOverrides(cmd *cobra.Command, cfg *scenario.Config) error {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Simulation.Seed = seed
	}
	if flags.Changed("periods") {
		cfg.Simulation.Periods = periods
	}
	if flags.Changed("trace") {
		cfg.Simulation.Trace = traceLevel
	}
	if flags.Changed("microenvironment") {
		cfg.Simulation.Microenvironment = microenvironment
	}
	for _, f := range formats {
		if !validFormats[strings.ToLower(f)] {
			return &formatError{format: f}
		}
	}
	return cfg.Validate()
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, sweepCmd, validateCmd} {
		c.Flags().StringVar(&configPath, "config", "", "Scenario YAML file")
		c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
		c.Flags().Int64Var(&seed, "seed", 0, "Seed for infection and arrival draws (overrides the scenario)")
		c.Flags().Int64Var(&periods, "periods", scenario.DefaultPeriods, "Number of ticks to simulate (overrides the scenario)")
		c.Flags().StringVar(&traceLevel, "trace", "none", "Transition trace level: none, transitions (overrides the scenario)")
		rootCmd.AddCommand(c)
	}
	runCmd.Flags().StringVar(&microenvironment, "microenvironment", "", "Microenvironment to simulate (overrides the scenario)")

	// Report output
	for _, c := range []*cobra.Command{runCmd, sweepCmd} {
		c.Flags().StringVar(&outputDir, "output-dir", "", "Directory for report files; nothing is written when empty")
		c.Flags().StringSliceVar(&formats, "format", []string{FormatCSV}, "Comma-separated report formats: csv, sqlite, jsonl, prom")
	}
	sweepCmd.Flags().IntVar(&parallel, "parallel", 0, "Maximum concurrent simulations (0 = one per microenvironment)")

	rootCmd.AddCommand(exampleCmd)
}
