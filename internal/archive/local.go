package archive

import (
	"fmt"
	"os"
	"path/filepath"
)

// SaveLocal writes one result artifact under dir and returns its path.
// The directory is created on demand.
func SaveLocal(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = filepath.Join("results")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	return p, nil
}
