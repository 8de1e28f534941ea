package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthdes/healthdes/sim/report"
	"github.com/healthdes/healthdes/sim/scenario"
)

func exampleConfig(t *testing.T) *scenario.Config {
	t.Helper()
	cfg, err := scenario.Parse(strings.NewReader(exampleScenario))
	require.NoError(t, err)
	return cfg
}

func TestExampleScenario_IsValid(t *testing.T) {
	cfg := exampleConfig(t)
	assert.Equal(t, []string{"cafe", "clinic waiting room", "shop"}, cfg.Names())
	assert.Equal(t, "shop", cfg.Simulation.Microenvironment)
}

func TestApplyOverrides_OnlyChangedFlags(t *testing.T) {
	// GIVEN a command where only --seed and --periods were set
	cfg := exampleConfig(t)
	c := &cobra.Command{}
	c.Flags().Int64Var(&seed, "seed", 0, "")
	c.Flags().Int64Var(&periods, "periods", scenario.DefaultPeriods, "")
	c.Flags().StringVar(&traceLevel, "trace", "none", "")
	require.NoError(t, c.Flags().Set("seed", "9"))
	require.NoError(t, c.Flags().Set("periods", "30"))
	formats = []string{FormatCSV}

	// WHEN overrides are applied
	require.NoError(t, applyOverrides(c, cfg))

	// THEN the set flags win and the rest keep the scenario's values
	assert.Equal(t, int64(9), cfg.Simulation.Seed)
	assert.Equal(t, int64(30), cfg.Simulation.Periods)
	assert.Equal(t, "none", cfg.Simulation.Trace)
	assert.Equal(t, "shop", cfg.Simulation.Microenvironment)
}

func TestApplyOverrides_Rejects(t *testing.T) {
	cfg := exampleConfig(t)
	c := &cobra.Command{}
	c.Flags().StringVar(&traceLevel, "trace", "none", "")

	formats = []string{"xlsx"}
	assert.ErrorContains(t, applyOverrides(c, cfg), "xlsx")

	formats = []string{FormatCSV}
	require.NoError(t, c.Flags().Set("trace", "everything"))
	assert.ErrorContains(t, applyOverrides(c, cfg), "trace")
}

func runExample(t *testing.T) *scenario.Result {
	t.Helper()
	cfg := exampleConfig(t)
	cfg.Simulation.Periods = 30
	s, err := scenario.New(cfg)
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestWriteOutputs_OneDirectoryPerSimulation(t *testing.T) {
	// GIVEN a finished run
	res := runExample(t)
	dir := t.TempDir()

	// WHEN csv and prom reports are written
	require.NoError(t, writeOutputs(context.Background(), res, dir, []string{"csv", "PROM"}))

	// THEN both land under the simulation's slug
	out := filepath.Join(dir, report.Slug(res.SimulationName))
	assert.FileExists(t, filepath.Join(out, report.CountersFile))
	assert.FileExists(t, filepath.Join(out, "quanta_concentration.csv"))
	assert.FileExists(t, filepath.Join(out, "metrics.prom"))

	// AND an empty directory writes nothing
	require.NoError(t, writeOutputs(context.Background(), res, "", []string{"csv"}))
}

func TestWriteOutputs_UnknownFormat(t *testing.T) {
	res := runExample(t)
	err := writeOutputs(context.Background(), res, t.TempDir(), []string{"xlsx"})
	assert.ErrorContains(t, err, "unknown report format")
}

func TestPrintResults_JSONOnWriter(t *testing.T) {
	res := runExample(t)
	var buf bytes.Buffer

	printResults(&buf, []*scenario.Result{res})

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "=== Simulation Results ==="))
	assert.Contains(t, out, `"attack_rate"`)
	assert.Contains(t, out, `"simulation_name": "shop"`)
	assert.NotContains(t, out, `"trace"`)
}

func TestExampleCmd_PrintsScenario(t *testing.T) {
	var buf bytes.Buffer
	exampleCmd.SetOut(&buf)
	t.Cleanup(func() { exampleCmd.SetOut(os.Stdout) })

	exampleCmd.Run(exampleCmd, nil)

	assert.Equal(t, exampleScenario, buf.String())
}
