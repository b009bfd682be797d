package series

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// LoadCSV reads a comma-separated export with the same layout as the workbooks.
func LoadCSV(path string, opts TableOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return ReadCSV(f, opts)
}

func ReadCSV(r io.Reader, opts TableOptions) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: parse csv: %w", opts.Metric, err)
	}
	return fromRows(opts, rows)
}
