package schedule

import (
	"fmt"
	"time"
)

// Default returns the standard retry checkpoints: the first retry fires one
// second after the initial failure, the last one 25 seconds in.
func Default() []time.Duration {
	return []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second, 25 * time.Second}
}

// Validate checks that checkpoints form a usable schedule: every entry
// non-negative and strictly increasing. An empty schedule is valid and means
// "no retries".
func Validate(checkpoints []time.Duration) error {
	for i, cp := range checkpoints {
		if cp < 0 {
			return fmt.Errorf("checkpoint %d is negative: %v", i, cp)
		}
		if i > 0 && cp <= checkpoints[i-1] {
			return fmt.Errorf("checkpoint %d (%v) does not increase over checkpoint %d (%v)", i, cp, i-1, checkpoints[i-1])
		}
	}
	return nil
}

// Gap returns the delay between the failure of attempt i and the start of
// attempt i+1. Checkpoints are cumulative elapsed-time marks measured from
// the first failure, so the gap is the difference between consecutive
// checkpoints; the first gap is the first checkpoint itself. Out-of-range
// attempts return 0.
func Gap(checkpoints []time.Duration, attempt int) time.Duration {
	if attempt < 0 || attempt >= len(checkpoints) {
		return 0
	}
	if attempt == 0 {
		return checkpoints[0]
	}
	return checkpoints[attempt] - checkpoints[attempt-1]
}
