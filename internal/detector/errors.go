package detector

import "errors"

var (
	// ErrUnsupportedBatchSize is returned by Report when the most recent
	// predict batch held more than one observation. The lag-corrected report
	// is only defined for single-observation batches.
	ErrUnsupportedBatchSize = errors.New("detector: report supports single-observation batches only")

	// ErrLabelLengthMismatch is returned by Feedback when the truth batch
	// length does not match the pending prediction batch. History is left
	// unmodified.
	ErrLabelLengthMismatch = errors.New("detector: truth length does not match pending prediction batch")
)
