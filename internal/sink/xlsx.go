package sink

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"ccranking/internal/components/assert"
	"ccranking/internal/ranking"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Rankings"

type XLSX struct {
	folder string
	prefix string
}

func NewXLSX(folder, prefix string) XLSX {
	assert.NotEmptyStr(folder)
	assert.NotEmptyStr(prefix)
	return XLSX{folder: folder, prefix: prefix}
}

func (s XLSX) Name() string {
	return "xlsx"
}

func (s XLSX) Write(ctx context.Context, batch ranking.Batch, run RunInfo) (string, error) {
	f, err := buildWorkbook(batch)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(s.folder, FileName(s.prefix, run.Time, "xlsx"))
	err = writeFile(path, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		if err != nil {
			return fmt.Errorf("xlsx write: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func buildWorkbook(batch ranking.Batch) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(xlsxSheet)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(index)
	// the default sheet is left empty otherwise
	err = f.DeleteSheet("Sheet1")
	if err != nil {
		f.Close()
		return nil, err
	}

	for rowIdx, row := range batch.Rows() {
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				f.Close()
				return nil, err
			}
			err = f.SetCellValue(xlsxSheet, cell, value)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	last, _ := excelize.ColumnNumberToName(len(batch.Layout.Header()))
	_ = f.SetColWidth(xlsxSheet, "A", "A", 8)
	_ = f.SetColWidth(xlsxSheet, "B", "B", 24)
	_ = f.SetColWidth(xlsxSheet, "C", last, 14)

	return f, nil
}
