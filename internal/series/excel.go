package series

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// LoadExcel reads a workbook laid out as one row per entity and one column per year.
func LoadExcel(path string, opts TableOptions) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	return loadWorkbook(f, opts)
}

// ReadExcel is LoadExcel over an already open stream.
func ReadExcel(r io.Reader, opts TableOptions) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	defer f.Close()

	return loadWorkbook(f, opts)
}

func loadWorkbook(f *excelize.File, opts TableOptions) (*Table, error) {
	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s: workbook has no sheets", opts.Metric)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: read sheet %q: %w", opts.Metric, sheet, err)
	}
	return fromRows(opts, rows)
}
