// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Image set labels, used in log fields and metric labels
const (
	// QuerySet names the images being localized
	QuerySet = "query"

	// DatabaseSet names the reference images with known positions
	DatabaseSet = "database"
)

// File permission constants
const (
	// FileMode is used for every file placematch writes (caches, answers, metrics)
	FileMode = 0o600

	// DirMode is used for directories placematch creates
	DirMode = 0o750
)

// Processing constants
const (
	// ProgressUnitImages and ProgressUnitQueries label progress bar rates
	ProgressUnitImages  = "images"
	ProgressUnitQueries = "queries"
)
