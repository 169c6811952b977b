package pagecount

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Count returns the number of pages in a local PDF file.
func Count(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}
