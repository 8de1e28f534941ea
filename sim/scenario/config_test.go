package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clinicYAML = `
simulation:
  name: clinic
  seed: 3
microenvironments:
  waiting room:
    volume: 75
    air_exchange_rate: 2.2
    visitor_capacity: 5
    average_length_of_stay: 0.25
    visitor_arrival_rate: 30
`

func TestParse_AppliesDefaults(t *testing.T) {
	// GIVEN a scenario that names only one microenvironment
	cfg, err := Parse(strings.NewReader(clinicYAML))
	require.NoError(t, err)

	// THEN periods, interval, trace and the selected microenvironment are defaulted
	assert.Equal(t, int64(DefaultPeriods), cfg.Simulation.Periods)
	assert.InDelta(t, 1.0/60, cfg.Simulation.TimeInterval, 1e-15)
	assert.Equal(t, "waiting room", cfg.Simulation.Microenvironment)
	assert.Equal(t, "none", cfg.Simulation.Trace)
	assert.Equal(t, "clinic", cfg.Simulation.Name)
	assert.Equal(t, 5, cfg.Microenvironments["waiting room"].VisitorCapacity)
}

func TestParse_UnknownKeyRejected(t *testing.T) {
	_, err := Parse(strings.NewReader(clinicYAML + "    air_exchange: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing scenario")
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(clinicYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"waiting room"}, cfg.Names())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading scenario")
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"zero volume", func(c *Config) { c.Microenvironments["shop"] = withVolume(c.Microenvironments["shop"], 0) }, "volume"},
		{"negative capacity", func(c *Config) {
			m := c.Microenvironments["shop"]
			m.VisitorCapacity = -1
			c.Microenvironments["shop"] = m
		}, "visitor_capacity"},
		{"zero stay", func(c *Config) {
			m := c.Microenvironments["shop"]
			m.AverageLengthOfStay = 0
			c.Microenvironments["shop"] = m
		}, "average_length_of_stay"},
		{"no arrival rate", func(c *Config) {
			m := c.Microenvironments["shop"]
			m.VisitorArrivalRate = 0
			c.Microenvironments["shop"] = m
		}, "visitor_arrival_rate"},
		{"bad cron", func(c *Config) {
			m := c.Microenvironments["shop"]
			m.ArrivalSchedule = "every minute"
			c.Microenvironments["shop"] = m
		}, "arrival_schedule"},
		{"bad arrival process", func(c *Config) {
			m := c.Microenvironments["shop"]
			m.ArrivalProcess = "burst"
			c.Microenvironments["shop"] = m
		}, "arrival_process"},
		{"unknown microenvironment", func(c *Config) { c.Simulation.Microenvironment = "cafe" }, "not defined"},
		{"bad trace level", func(c *Config) { c.Simulation.Trace = "verbose" }, "trace"},
		{"bad start time", func(c *Config) { c.Simulation.StartTime = "yesterday" }, "start_time"},
		{"negative periods", func(c *Config) { c.Simulation.Periods = -1 }, "periods"},
		{"no microenvironments", func(c *Config) {
			c.Microenvironments = nil
			c.Simulation.Microenvironment = ""
		}, "no microenvironments"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := shopConfig()
			cfg.Normalize()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestNew_SeveralMicroenvironmentsNeedSelection(t *testing.T) {
	// GIVEN two microenvironments and no selection
	cfg := shopConfig()
	cfg.Simulation.Microenvironment = ""
	cfg.Simulation.Name = ""
	cfg.Microenvironments["cafe"] = cfg.Microenvironments["shop"]
	cfg.Normalize()

	// WHEN validated and then built as a single run
	require.NoError(t, cfg.Validate())
	_, err := New(cfg)

	// THEN only the single run is rejected
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[cafe shop]")
}

func TestFor_CopiesAndRenames(t *testing.T) {
	cfg := shopConfig()
	cfg.Microenvironments["cafe"] = withVolume(cfg.Microenvironments["shop"], 120)

	cafe := cfg.For("cafe")
	cafe.Microenvironments["cafe"] = withVolume(cafe.Microenvironments["cafe"], 1)

	assert.Equal(t, "cafe", cafe.Simulation.Name)
	assert.Equal(t, "cafe", cafe.Simulation.Microenvironment)
	assert.Equal(t, "shop", cfg.Simulation.Name)
	assert.Equal(t, 120.0, cfg.Microenvironments["cafe"].Volume)
}

func withVolume(m MicroenvironmentSpec, v float64) MicroenvironmentSpec {
	m.Volume = v
	return m
}
