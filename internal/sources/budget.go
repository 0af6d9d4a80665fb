package sources

import (
	"fmt"
)

// ErrorBudget counts record failures for one repository. A limit of zero or
// less never trips.
type ErrorBudget struct {
	limit int
	errs  []string
}

func NewErrorBudget(limit int) *ErrorBudget {
	return &ErrorBudget{limit: limit}
}

// Fail records a failure and returns ErrErrorBudgetExceeded once the count
// is above the limit.
func (b *ErrorBudget) Fail(identifier string, err error) error {
	b.errs = append(b.errs, fmt.Sprintf("%s: %v", identifier, err))
	if b.Exceeded() {
		return fmt.Errorf("%w: %d errors, limit %d", ErrErrorBudgetExceeded, len(b.errs), b.limit)
	}
	return nil
}

func (b *ErrorBudget) Exceeded() bool {
	return b.limit > 0 && len(b.errs) > b.limit
}

func (b *ErrorBudget) Count() int { return len(b.errs) }

// Errors returns the recorded failures, oldest first.
func (b *ErrorBudget) Errors() []string {
	return append([]string(nil), b.errs...)
}
