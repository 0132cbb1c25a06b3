package analysis

import (
	"errors"

	"github.com/aristath/factorlens/internal/config"
	"github.com/aristath/factorlens/internal/modules/correlation"
	"github.com/aristath/factorlens/internal/modules/returns"
)

// IsDataError reports whether err means the data or settings cannot support an analysis,
// as opposed to an internal failure.
func IsDataError(err error) bool {
	var (
		universeErr *returns.InsufficientUniverseError
		historyErr  *returns.InsufficientHistoryError
		overlapErr  *correlation.InsufficientOverlapError
		configErr   *ConfigError
	)
	return errors.As(err, &universeErr) ||
		errors.As(err, &historyErr) ||
		errors.As(err, &overlapErr) ||
		errors.As(err, &configErr)
}

// IsNotFound reports whether err refers to an unknown universe.
func IsNotFound(err error) bool {
	return errors.Is(err, config.ErrUnknownUniverse)
}
