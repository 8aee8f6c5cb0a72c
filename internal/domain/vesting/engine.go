package vesting

import "github.com/presale/backend/internal/domain/shared/safemath"

// Terms are the immutable inputs of the release curve
type Terms struct {
	TotalAmount   uint64
	StartTime     int64
	CliffDuration uint64
	Duration      uint64
}

// VestedAmount returns how much of the grant has vested at now:
// nothing before start+cliff, all of it from start+duration on, and
// floor(total * elapsed / duration) in between. It is non-decreasing in now.
func VestedAmount(t Terms, now int64) (uint64, error) {
	if now < t.StartTime {
		return 0, nil
	}
	// now >= start, so the wrapped unsigned difference is exact
	elapsed := uint64(now) - uint64(t.StartTime)

	if elapsed < t.CliffDuration {
		return 0, nil
	}
	if elapsed >= t.Duration {
		return t.TotalAmount, nil
	}
	return safemath.MulDiv(t.TotalAmount, elapsed, t.Duration)
}
