package domain

import "context"

// LogEntry is one classification result: image ImageID was labelled
// Predicted by the model of RunID at EpochID, its true class being
// GroundTruth.
type LogEntry struct {
	RunID       int
	EpochID     int
	ImageID     ImageID
	GroundTruth int
	Predicted   int
}

// ImageFilter selects images from the classification log. All set fields
// must match. Limit bounds the result and is always applied by the query;
// an unset Limit means DefaultImageLimit. Callers taking a limit from users
// reject values below 1 before building the filter.
type ImageFilter struct {
	RunID       int
	AnyRun      bool
	EpochID     int
	GroundTruth int
	Predicted   int
	Limit       int
}

// DefaultImageLimit is used when a filter carries no limit.
const DefaultImageLimit = 100

// AccuracyRatio summarises one epoch of a run.
type AccuracyRatio struct {
	Correct int64   `json:"correct"`
	Total   int64   `json:"total"`
	Ratio   float64 `json:"ratio"`
}

// MetadataRepository defines the classification log lookups used by the
// sprite service.
type MetadataRepository interface {
	// ImageIDs returns the ordered ids of images matching filter, at most
	// filter.Limit of them.
	ImageIDs(ctx context.Context, filter ImageFilter) ([]ImageID, error)

	// AccuracyRatio returns correct/total predictions for an epoch of a run.
	AccuracyRatio(ctx context.Context, runID, epochID int) (*AccuracyRatio, error)

	// Insert stores log entries in a single transaction.
	Insert(ctx context.Context, entries []LogEntry) error
}
