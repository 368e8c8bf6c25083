package cli

import (
	"fmt"
	"os"

	"github.com/roach88/flowcanvas/internal/store"
)

// openExisting opens a journal that must already exist. store.Open would
// create an empty one, which hides a mistyped path.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path), err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
