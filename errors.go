package omreval

import (
	"errors"

	"github.com/jamesainslie/go-omreval/annotation"
)

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrNoImages indicates neither ground truth nor predictions name any image.
	ErrNoImages = errors.New("omreval: no images to evaluate")

	// ErrEvaluatorClosed indicates the Evaluator was used after Close.
	ErrEvaluatorClosed = errors.New("omreval: evaluator is closed")

	// ErrInvalidThreshold indicates a score threshold outside [0, 1].
	ErrInvalidThreshold = annotation.ErrInvalidThreshold

	// ErrMalformedAnnotation wraps the aggregate error for excluded records.
	ErrMalformedAnnotation = annotation.ErrMalformedAnnotation
)
