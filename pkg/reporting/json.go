package reporting

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ducminhle1904/quant-backtest/internal/backtest"
)

// JSONReporter dumps the whole result record as indented JSON.
type JSONReporter struct {
	path string
}

func NewJSONReporter(path string) *JSONReporter {
	return &JSONReporter{path: path}
}

func (r *JSONReporter) Report(result *backtest.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if r.path == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := ensureDir(r.path); err != nil {
		return err
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", r.path, err)
	}
	return nil
}
