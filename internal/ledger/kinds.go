package ledger

import (
	"errors"

	"github.com/sahakari/sahakari-cbs/internal/daybook"
)

// FailureKind classifies a posting error into a stable slug used both in
// problem responses and metric labels.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrUnbalanced):
		return "UnbalancedTransaction"
	case errors.Is(err, ErrTooFewEntries):
		return "TooFewEntries"
	case errors.Is(err, ErrZeroAmount):
		return "ZeroAmountEntry"
	case errors.Is(err, ErrGroupAccountPosting):
		return "PostingToGroupAccount"
	case errors.Is(err, ErrUnknownAccount):
		return "UnknownAccount"
	case errors.Is(err, ErrInactiveAccount):
		return "InactiveAccount"
	case errors.Is(err, daybook.ErrDayNotOpen), errors.Is(err, daybook.ErrNoDayOpen):
		return "DayNotOpen"
	default:
		return "Internal"
	}
}
