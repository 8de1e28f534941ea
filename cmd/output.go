package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/healthdes/healthdes/sim/report"
	"github.com/healthdes/healthdes/sim/scenario"
	"github.com/healthdes/healthdes/sim/trace"
)

// Report formats accepted by --format.
const (
	FormatCSV        = "csv"
	FormatSQLite     = "sqlite"
	FormatJSONL      = "jsonl"
	FormatPrometheus = "prom"
)

var validFormats = map[string]bool{FormatCSV: true, FormatSQLite: true, FormatJSONL: true, FormatPrometheus: true}

type formatError struct {
	format string
}

func (e *formatError) Error() string {
	return fmt.Sprintf("unknown report format %q; valid: csv, sqlite, jsonl, prom", e.format)
}

// outputPath returns where a result's reports go: one directory per
// simulation name under dir.
func outputPath(dir string, res *scenario.Result) string {
	return filepath.Join(dir, report.Slug(res.SimulationName))
}

// writeOutputs writes res in each format under dir. An empty dir writes nothing.
func writeOutputs(ctx context.Context, res *scenario.Result, dir string, formats []string) error {
	if dir == "" {
		return nil
	}
	out := outputPath(dir, res)
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	for _, f := range formats {
		var err error
		switch strings.ToLower(f) {
		case FormatCSV:
			err = res.Collector.WriteCSV(out)
		case FormatSQLite:
			err = res.Collector.WriteSQLite(ctx, filepath.Join(out, "reports.sqlite"))
		case FormatJSONL:
			err = res.Collector.WriteJSONL(filepath.Join(out, "reports.jsonl.zst"))
		case FormatPrometheus:
			err = res.Collector.WritePrometheus(filepath.Join(out, "metrics.prom"))
		default:
			err = &formatError{format: f}
		}
		if err != nil {
			return err
		}
		logrus.Infof("Wrote %s reports of %s to %s", f, res.SimulationName, out)
	}
	return nil
}

// resultOutput is the JSON printed per simulation.
type resultOutput struct {
	*scenario.Result
	Trace *trace.TraceSummary `json:"trace,omitempty"`
}

// printResults writes the results as indented JSON after a header line.
func printResults(w io.Writer, results []*scenario.Result) {
	out := make([]resultOutput, len(results))
	for i, res := range results {
		out[i] = resultOutput{Result: res}
		if res.Trace.Enabled() {
			out[i].Trace = trace.Summarize(res.Trace)
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		logrus.Errorf("Error marshalling results: %v", err)
		return
	}
	fmt.Fprintln(w, "=== Simulation Results ===")
	fmt.Fprintln(w, string(data))
}
