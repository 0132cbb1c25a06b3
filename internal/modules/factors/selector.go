package factors

import (
	"fmt"
	"math"
)

// SelectComponents returns the smallest k whose cumulative explained variance ratio is
// at least target. When rounding at the tail keeps the cumulative sum below target, all
// components are kept. The result is always within [1, number of assets].
func SelectComponents(cs *ComponentSet, target float64) (int, error) {
	if cs == nil || cs.Len() == 0 {
		return 0, ErrEmptyMatrix
	}
	if math.IsNaN(target) || target <= 0 || target > 1 {
		return 0, fmt.Errorf("variance target %v outside (0, 1]", target)
	}

	k := cs.Len()
	for i, cum := range cs.Cumulative() {
		if cum >= target {
			k = i + 1
			break
		}
	}

	if k < 1 {
		k = 1
	}
	if limit := len(cs.Assets); k > limit {
		k = limit
	}
	return k, nil
}
