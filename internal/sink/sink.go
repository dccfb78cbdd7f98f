package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"ccranking/internal/components/assert"
	"ccranking/internal/ranking"
)

// RunInfo identifies the run a batch was produced by.
type RunInfo struct {
	ID   string
	Time time.Time
}

// Sink persists a batch somewhere.
//
// note: fault injection point
type Sink interface {
	// Name is a short identifier used in run reports, ex. "csv".
	Name() string
	// Write persists the batch and returns where it went (a path, a table name, a recipient).
	Write(ctx context.Context, batch ranking.Batch, run RunInfo) (location string, err error)
}

// FileName returns `<prefix>_<YYYY-MM-DD>.<ext>` using the calendar date of t in its own location,
// so two runs on the same day write to the same file.
func FileName(prefix string, t time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format(time.DateOnly), ext)
}

// EncodeCSV writes the header row and one row per record.
func EncodeCSV(w io.Writer, batch ranking.Batch) error {
	writer := csv.NewWriter(w)
	err := writer.WriteAll(batch.Rows())
	if err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	return nil
}

type CSV struct {
	folder string
	prefix string
}

func NewCSV(folder, prefix string) CSV {
	assert.NotEmptyStr(folder)
	assert.NotEmptyStr(prefix)
	return CSV{folder: folder, prefix: prefix}
}

func (s CSV) Name() string {
	return "csv"
}

func (s CSV) Write(ctx context.Context, batch ranking.Batch, run RunInfo) (string, error) {
	path := filepath.Join(s.folder, FileName(s.prefix, run.Time, "csv"))
	err := writeFile(path, func(w io.Writer) error {
		return EncodeCSV(w, batch)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// writeFile writes into a temporary file next to `path` and renames it over `path` once
// encoding succeeded, a failed run never leaves a truncated file behind.
func writeFile(path string, encode func(w io.Writer) error) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	err = encode(tmp)
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("rename output file: %w", err)
	}
	return nil
}
