// Package services provides business logic and orchestration services.
package services

import (
	"fmt"

	"bilancio/internal/core"
)

// NextDue computes the next occurrence date for a recurring rule.
//
// When lastCreated is zero (no occurrence generated yet) the next due date is
// the rule's start date, for every frequency. Otherwise the last created date
// is advanced by exactly one period: monthly and yearly advances clamp to the
// end of shorter target months (Jan 31 + 1 month = Feb 28/29).
//
// Pure and deterministic. An unknown frequency is a contract violation:
// frequencies are a closed enumeration validated at rule creation, so the
// error returned here is fatal for the caller, not a recoverable condition.
func NextDue(start, lastCreated core.Date, freq core.Frequency) (core.Date, error) {
	switch freq {
	case core.Daily:
		if lastCreated.IsZero() {
			return start, nil
		}
		return lastCreated.AddDays(1), nil
	case core.Weekly:
		if lastCreated.IsZero() {
			return start, nil
		}
		return lastCreated.AddDays(7), nil
	case core.Monthly:
		if lastCreated.IsZero() {
			return start, nil
		}
		return lastCreated.AddMonths(1), nil
	case core.Yearly:
		if lastCreated.IsZero() {
			return start, nil
		}
		return lastCreated.AddYears(1), nil
	default:
		return core.Date{}, fmt.Errorf("unknown frequency: %s", freq)
	}
}
