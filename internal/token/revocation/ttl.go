package revocation

import (
	"fmt"
	"time"

	"unionvote/pkg/platform/sentinel"
)

// Clock returns the current time. Injected for tests.
type Clock func() time.Time

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}

// RemainingTTL is how long a denylist entry must live to outlast the token.
func RemainingTTL(expiresAt, now time.Time) time.Duration {
	return expiresAt.Sub(now)
}
