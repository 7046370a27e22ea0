package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ducminhle1904/quant-backtest/internal/backtest"
)

// Package reporting renders finished simulation results for humans and
// downstream tools.

// Reporter writes one finished run somewhere.
type Reporter interface {
	Report(result *backtest.Result) error
}

// ensureDir creates the parent directory chain for an output path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
