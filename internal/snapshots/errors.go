package snapshots

import "errors"

var (
	ErrSaveFailed      = errors.New("Failed to save analysis to local storage.")
	ErrNothingSaved    = errors.New("No saved analysis found.")
	ErrCorruptSnapshot = errors.New("Failed to load saved analysis. Data may be corrupted.")
	ErrLoadFailed      = errors.New("Failed to load saved analysis.")
)
