package report

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populated(t *testing.T) *Collector {
	t.Helper()
	_, c := newTestCollector()
	c.CounterIncrement("Total visitors", 3)
	c.CounterIncrement("Infections", 1)
	require.NoError(t, c.LogRow("Quanta concentration", Row{"Waiting room": 0.5}))
	require.NoError(t, c.LogRow("Visitor activity", Row{"visitors": 1, "queue": 0}))
	require.NoError(t, c.LogRow("Visitor activity", Row{"visitors": 2}))
	return c
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Quanta concentration": "quanta_concentration",
		"  Visitor activity ":  "visitor_activity",
		"Infection risk (%)":   "infection_risk",
		"a--b":                 "a_b",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestWriteCSV_OneFilePerTablePlusCounters(t *testing.T) {
	c := populated(t)
	dir := t.TempDir()

	require.NoError(t, c.WriteCSV(dir))

	f, err := os.Open(filepath.Join(dir, "visitor_activity.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"simulation_name", "simulation_run", "time", "queue", "visitors"}, records[0])
	assert.Equal(t, NullText, records[2][3], "missing field renders as Null")

	counters, err := os.ReadFile(filepath.Join(dir, CountersFile))
	require.NoError(t, err)
	assert.Contains(t, string(counters), "Total visitors,3")
}

func TestWriteJSONL_RoundTripsThroughZstd(t *testing.T) {
	c := populated(t)
	path := filepath.Join(t.TempDir(), "out", "results.jsonl.zst")

	require.NoError(t, c.WriteJSONL(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()
	var reports, counters int
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		if _, ok := rec["report"]; ok {
			reports++
		}
		if _, ok := rec["counter"]; ok {
			counters++
		}
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, 3, reports)
	assert.Equal(t, 2, counters)
}

func TestWriteSQLite_TablesAndCounters(t *testing.T) {
	c := populated(t)
	path := filepath.Join(t.TempDir(), "results.db")

	require.NoError(t, c.WriteSQLite(context.Background(), path))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "visitor_activity"`).Scan(&n))
	assert.Equal(t, 2, n)
	var v float64
	require.NoError(t, db.QueryRow(`SELECT value FROM counters WHERE counter = ?`, "Total visitors").Scan(&v))
	assert.Equal(t, 3.0, v)
	var nulls int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "visitor_activity" WHERE queue IS NULL`).Scan(&nulls))
	assert.Equal(t, 1, nulls)
}

func TestWritePrometheus_TextfileFormat(t *testing.T) {
	c := populated(t)
	path := filepath.Join(t.TempDir(), "healthdes.prom")

	require.NoError(t, c.WritePrometheus(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `healthdes_counter{name="Infections",run="run-1",simulation="Test simulation"} 1`), text)
	assert.Contains(t, text, `healthdes_report_rows{report="Visitor activity",run="run-1",simulation="Test simulation"} 2`)
}
