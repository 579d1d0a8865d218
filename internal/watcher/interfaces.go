package watcher

import "context"

// Watcher monitors project sources for changes with debouncing and
// pause/resume support.
type Watcher interface {
	// Start begins watching, calling callback with debounced batches of
	// changed files relative to the project root.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops the watcher and cleans up resources.
	Stop() error

	// Pause stops firing callbacks but continues accumulating events.
	Pause()

	// Resume resumes firing callbacks. If events accumulated during pause, fires immediately.
	Resume()
}
