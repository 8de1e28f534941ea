package report

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite"
)

// NullText is how a missing field is rendered in text exports.
const NullText = "Null"

// CountersFile is the CSV file holding counters in a WriteCSV directory.
const CountersFile = "counters.csv"

// WriteCSV writes one CSV file per table plus counters.csv into dir.
func (c *Collector) WriteCSV(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, name := range c.order {
		tbl := c.tables[name]
		path := filepath.Join(dir, Slug(name)+".csv")
		if err := writeCSVFile(path, tbl.columns, len(tbl.rows), func(i int) []string {
			out := make([]string, len(tbl.columns))
			for j, v := range tbl.rows[i] {
				out[j] = formatText(v)
			}
			return out
		}); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	names := c.CounterNames()
	path := filepath.Join(dir, CountersFile)
	return writeCSVFile(path, []string{ColumnSimulationName, ColumnSimulationRun, "counter", "value"}, len(names), func(i int) []string {
		return []string{c.simulationName, c.run, names[i], formatText(c.counters[names[i]])}
	})
}

func writeCSVFile(path string, header []string, n int, record func(int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(record(i)); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteSQLite stores every table and the counters in a SQLite database at
// path. Tables are created if missing, so several runs can share one file.
func (c *Collector) WriteSQLite(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS counters (
		simulation_name TEXT NOT NULL,
		simulation_run TEXT NOT NULL,
		counter TEXT NOT NULL,
		value REAL NOT NULL
	)`); err != nil {
		return err
	}
	for _, name := range c.CounterNames() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO counters(simulation_name, simulation_run, counter, value) VALUES (?, ?, ?, ?)`,
			c.simulationName, c.run, name, c.counters[name]); err != nil {
			return err
		}
	}

	for _, name := range c.order {
		tbl := c.tables[name]
		cols := make([]string, len(tbl.columns))
		marks := make([]string, len(tbl.columns))
		for i, col := range tbl.columns {
			cols[i] = quoteIdent(col)
			marks[i] = "?"
		}
		table := quoteIdent(Slug(name))
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", "))); err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s(%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(marks, ", ")))
		if err != nil {
			return fmt.Errorf("prepare %s: %w", name, err)
		}
		for _, r := range tbl.rows {
			args := make([]any, len(r))
			for i, v := range r {
				args[i] = sqlValue(v)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				_ = stmt.Close()
				return fmt.Errorf("insert %s: %w", name, err)
			}
		}
		if err := stmt.Close(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// jsonRecord is one line of the JSONL export.
type jsonRecord struct {
	Report string `json:"report,omitempty"`
	Row    Row    `json:"row,omitempty"`

	Counter string   `json:"counter,omitempty"`
	Value   *float64 `json:"value,omitempty"`
}

// WriteJSONL writes every row and counter as zstd-compressed JSON lines.
func (c *Collector) WriteJSONL(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w := bufio.NewWriterSize(enc, 128*1024)
	je := json.NewEncoder(w)

	write := func() error {
		for _, name := range c.order {
			tbl := c.tables[name]
			for i := range tbl.rows {
				if err := je.Encode(jsonRecord{Report: name, Row: tbl.Row(i)}); err != nil {
					return err
				}
			}
		}
		for _, name := range c.CounterNames() {
			v := c.counters[name]
			if err := je.Encode(jsonRecord{Counter: name, Value: &v}); err != nil {
				return err
			}
		}
		return w.Flush()
	}
	if err := write(); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WritePrometheus writes counters and table sizes in the Prometheus text
// exposition format, for pickup by a node_exporter textfile collector.
func (c *Collector) WritePrometheus(path string) error {
	reg := prometheus.NewRegistry()
	counters := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "healthdes",
		Name:      "counter",
		Help:      "Final value of a simulation counter.",
	}, []string{"simulation", "run", "name"})
	rows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "healthdes",
		Name:      "report_rows",
		Help:      "Number of rows logged to a report.",
	}, []string{"simulation", "run", "report"})
	reg.MustRegister(counters, rows)

	for name, v := range c.counters {
		counters.WithLabelValues(c.simulationName, c.run, name).Set(v)
	}
	for _, name := range c.order {
		rows.WithLabelValues(c.simulationName, c.run, name).Set(float64(c.tables[name].Len()))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, reg)
}

// Slug turns a report name into a file and table friendly identifier:
// "Quanta concentration" becomes "quanta_concentration".
func Slug(name string) string {
	var sb strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && sb.Len() > 0 {
			sb.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(sb.String(), "_")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatText(v any) string {
	switch x := v.(type) {
	case nil:
		return NullText
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func sqlValue(v any) any {
	switch x := v.(type) {
	case nil, string, float64, int64, int, bool, []byte:
		return x
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
