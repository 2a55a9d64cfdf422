package render

import (
	"context"
	"fmt"
	"log/slog"
)

// Fallback returns a provider that tries secondary when primary fails.
// Context cancellation is not retried: the caller gave up, the upstream
// did not fail.
func Fallback(primary, secondary Provider, logger *slog.Logger) Provider {
	if secondary == nil {
		return primary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return ProviderFunc(func(ctx context.Context) (string, error) {
		page, err := primary.Render(ctx)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return "", err
		}

		logger.WarnContext(ctx, "render: primary failed, falling back", "error", err)

		page, ferr := secondary.Render(ctx)
		if ferr != nil {
			return "", fmt.Errorf("render: primary: %v; fallback: %w", err, ferr)
		}
		return page, nil
	})
}
