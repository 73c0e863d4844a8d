package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/GoSim-25-26J-441/marketsim/internal/simulate"
	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
	"github.com/GoSim-25-26J-441/marketsim/pkg/models"
)

const sheetName = "data"

// Options select which artifacts are written and how they are named.
type Options struct {
	OutDir          string
	DatasetName     string
	Version         string
	AddTimestamp    bool
	TimestampFormat string // Go time layout
	SaveCSV         bool
	SaveExcel       bool
	SaveHeadCSV     bool
	SaveMeta        bool
	HeadRows        int
}

// DefaultOptions writes a timestamped CSV to ./outputs.
func DefaultOptions() Options {
	return Options{
		OutDir:          "outputs",
		DatasetName:     "synthetic_data",
		Version:         "v0",
		AddTimestamp:    true,
		TimestampFormat: "2006_01_02_15_04",
		SaveCSV:         true,
		HeadRows:        200,
	}
}

// Meta is the metadata sidecar.
type Meta struct {
	CreatedAt time.Time          `json:"created_at"`
	Version   string             `json:"version"`
	Dataset   string             `json:"dataset"`
	Rows      int                `json:"rows"`
	Columns   []string           `json:"columns"`
	Summary   *models.RunSummary `json:"summary,omitempty"`
	Config    any                `json:"config,omitempty"`
}

// Writer saves datasets.
type Writer struct {
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

// NewWriter creates a writer.
func NewWriter(opts Options) *Writer {
	return &Writer{
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.Default,
	}
}

// SetLogger sets the logger for the writer
func (w *Writer) SetLogger(l *slog.Logger) {
	if l != nil {
		w.logger = l
	}
}

// SetClock overrides the clock used for names and metadata.
func (w *Writer) SetClock(now func() time.Time) {
	w.now = now
}

// BaseName is <dataset>_<version>[_<timestamp>].
func (w *Writer) BaseName(at time.Time) string {
	name := w.opts.DatasetName + "_" + w.opts.Version
	if w.opts.AddTimestamp {
		name += "_" + at.Format(w.opts.TimestampFormat)
	}
	return name
}

// Save writes every enabled artifact and returns artifact kind -> path.
// meta.CreatedAt, Version, Dataset, Rows and Columns are filled in.
func (w *Writer) Save(records []simulate.Record, meta Meta) (map[string]string, error) {
	if err := os.MkdirAll(w.opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	at := w.now()
	base := filepath.Join(w.opts.OutDir, w.BaseName(at))
	table := NewTable(records)
	paths := make(map[string]string)

	if w.opts.SaveCSV {
		p := base + ".csv"
		if err := writeFile(p, func(f io.Writer) error { return WriteCSV(f, table, 0) }); err != nil {
			return paths, err
		}
		paths["csv"] = p
	}
	if w.opts.SaveHeadCSV {
		p := base + "_head.csv"
		if err := writeFile(p, func(f io.Writer) error { return WriteCSV(f, table, w.opts.HeadRows) }); err != nil {
			return paths, err
		}
		paths["head_csv"] = p
	}
	if w.opts.SaveExcel {
		p := base + ".xlsx"
		if err := WriteExcel(p, table); err != nil {
			return paths, err
		}
		paths["excel"] = p
	}
	if w.opts.SaveMeta {
		meta.CreatedAt = at
		meta.Version = w.opts.Version
		meta.Dataset = w.opts.DatasetName
		meta.Rows = table.Len()
		meta.Columns = table.Columns
		p := base + "_meta.json"
		if err := writeFile(p, func(f io.Writer) error { return WriteMeta(f, meta) }); err != nil {
			return paths, err
		}
		paths["meta"] = p
	}

	if len(paths) == 0 {
		w.logger.Warn("No artifacts requested", "out_dir", w.opts.OutDir)
	}
	for kind, p := range paths {
		w.logger.Info("Artifact written", "kind", kind, "path", p)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WriteCSV writes the header and up to limit rows; limit <= 0 writes all.
func WriteCSV(w io.Writer, t *Table, limit int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	n := t.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(t.StringRow(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteExcel writes the table to one sheet of a new workbook at path.
func WriteExcel(path string, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < t.Len(); i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := t.Row(i)
		// timestamps as text
		row[0] = formatCell(row[0])
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// WriteMeta writes meta as indented JSON.
func WriteMeta(w io.Writer, meta Meta) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}
