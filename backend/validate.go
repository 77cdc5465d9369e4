package backend

import (
	"fmt"
	"os"

	"ember/model"
)

// minModelFileBytes is the smallest size a single-file model source can
// plausibly have. Anything under this is a corrupt or partial download.
const minModelFileBytes = 1 << 20

// validateSource checks that a model source location exists and is
// non-trivial: a directory with contents, or a file of at least
// minModelFileBytes. Adapters call this before touching the native
// runtime so a broken download fails loudly instead of "loading".
func validateSource(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", model.ErrFileMissing, path)
	}

	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return fmt.Errorf("%w: unreadable model directory %s", model.ErrFileMissing, path)
		}
		if len(entries) == 0 {
			return fmt.Errorf("%w: empty model directory %s", model.ErrFileMissing, path)
		}
		return nil
	}

	if info.Size() < minModelFileBytes {
		return fmt.Errorf("%w: %s is %d bytes, below the %d byte minimum",
			model.ErrFileMissing, path, info.Size(), minModelFileBytes)
	}
	return nil
}
