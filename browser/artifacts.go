package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// SaveScreenshot captures the current page and writes it as a PNG under
// dir, creating the directory if needed. It returns the file path.
func SaveScreenshot(ctx context.Context, d Driver, dir, name string) (string, error) {
	buf, err := d.Screenshot(ctx)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}
