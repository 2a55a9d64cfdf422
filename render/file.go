package render

import (
	"context"
	"fmt"
	"os"
)

// File serves a page saved to disk. Used for offline runs and fixtures.
type File struct {
	Path string
}

func (f File) Render(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("file: %w", err)
	}
	return string(data), nil
}
