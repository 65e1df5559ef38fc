package weather

import "time"

// SelectClosest returns the index of the timestamp nearest to target.
// Ties go to the earliest index.
func SelectClosest(timestamps []time.Time, target time.Time) (int, error) {
	if len(timestamps) == 0 {
		return -1, ErrEmptySeries
	}

	best := 0
	bestDiff := absDuration(timestamps[0].Sub(target))
	for i := 1; i < len(timestamps); i++ {
		if d := absDuration(timestamps[i].Sub(target)); d < bestDiff {
			best = i
			bestDiff = d
		}
	}
	return best, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
