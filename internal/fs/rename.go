package fs

import (
	"context"
	"os"
)

// wraps os.Rename with retry logic.
// Rename is the finalization step for both backup artifacts and state saves,
// so transient failures here are worth a few retries.

func renameWithRetry(ctx context.Context, oldPath, newPath string) error {
	return retry(ctx, "rename", func() error {
		return os.Rename(oldPath, newPath)
	})
}
