package domain

import (
	"fmt"
	"time"
)

// CooldownError is returned when a user tries to mine again too early.
// It is not fatal: the caller should retry after Remaining.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("mining cooldown: retry in %s", e.Remaining.Round(time.Second))
}
