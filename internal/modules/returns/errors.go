package returns

import (
	"fmt"
	"strings"
	"time"
)

// MinAssets is the smallest universe the factor analysis accepts.
const MinAssets = 3

// InsufficientUniverseError is returned when fewer than MinAssets assets survive cleaning.
type InsufficientUniverseError struct {
	Usable  []string
	Dropped []DroppedAsset
	Start   time.Time
	End     time.Time
}

func (e *InsufficientUniverseError) Error() string {
	dropped := make([]string, 0, len(e.Dropped))
	for _, d := range e.Dropped {
		dropped = append(dropped, d.Symbol+"("+d.Reason+")")
	}
	return fmt.Sprintf("insufficient universe: %d usable assets [%s], need at least %d (dropped: [%s], range %s..%s)",
		len(e.Usable), strings.Join(e.Usable, ","), MinAssets, strings.Join(dropped, ","),
		formatDate(e.Start), formatDate(e.End))
}

// InsufficientHistoryError is returned when too few periods remain for a computation.
type InsufficientHistoryError struct {
	Rows     int
	Required int
	Start    time.Time
	End      time.Time
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: %d rows available, need at least %d (range %s..%s)",
		e.Rows, e.Required, formatDate(e.Start), formatDate(e.End))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.Format("2006-01-02")
}
