package circuitbreaker

import (
	"context"
	"errors"
	"os"
)

// Weigh returns the error weight for one upstream call outcome.
// status is the HTTP status when err is nil.
//
// Weights:
//   - timeout (deadline exceeded) -> 1.5
//   - other transport errors -> 1.0
//   - 500-504 -> 1.0
//   - everything else, including 403/429 quota responses -> 0.0
//
// Quota rejections are deliberate upstream behavior, not upstream
// failure, so they never trip the breaker.
func Weigh(status int, err error) float64 {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
			return 1.5
		}
		return 1.0
	}
	if status >= 500 && status <= 504 {
		return 1.0
	}
	return 0
}
