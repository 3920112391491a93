package transform

import (
	"context"

	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/cleanse"
	"github.com/relloyd/starpipe/file"
	"github.com/relloyd/starpipe/source"
	"github.com/relloyd/starpipe/store"
)

// Error identifiers reported for a failed run.
const (
	ErrorIDMalformedInput    = "malformed_input"
	ErrorIDStoreFailure      = "store_failure"
	ErrorIDSourceUnavailable = "source_unavailable"
	ErrorIDCancelled         = "cancelled"
	ErrorIDInternal          = "internal"
)

// ClassifyError maps a stage error to its error identifier.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, cleanse.ErrMalformedInput), errors.Is(err, file.ErrMalformedCSV):
		return ErrorIDMalformedInput
	case errors.Is(err, source.ErrSourceUnavailable):
		return ErrorIDSourceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorIDCancelled
	case errors.Is(err, store.ErrFailure):
		return ErrorIDStoreFailure
	}
	return ErrorIDInternal
}
