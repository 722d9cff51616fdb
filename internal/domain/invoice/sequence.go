package invoice

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ierr "github.com/invopay/invopay/internal/errors"
)

// DefaultNumberPadding is the default zero-padded width of the sequential
// suffix of an invoice number.
const DefaultNumberPadding = 4

// NumberScope formats the date-scoped prefix shared by all invoice numbers
// issued on the same day (for the default layout), e.g. "INV-20240115".
func NumberScope(prefix, layout string, at time.Time) string {
	return prefix + at.Format(layout)
}

// NextNumber derives the next invoice number for a scope given the highest
// existing number in that scope. It is pure: the lookup of lastNumber and the
// serialization of lookup-then-assign belong to the caller. An empty
// lastNumber starts the sequence at 1.
func NextNumber(scope, lastNumber string, padding int) (string, error) {
	if padding < 1 {
		padding = DefaultNumberPadding
	}

	next := int64(1)
	if lastNumber != "" {
		if !strings.HasPrefix(lastNumber, scope) {
			return "", ierr.NewError("last invoice number does not match scope").
				WithHintf("Number %q is not in scope %q", lastNumber, scope).
				Mark(ierr.ErrInvalidOperation)
		}
		suffix := strings.TrimPrefix(strings.TrimPrefix(lastNumber, scope), "-")
		last, err := strconv.ParseInt(suffix, 10, 64)
		if err != nil {
			return "", ierr.WithError(err).
				WithHintf("Number %q has a non-numeric suffix", lastNumber).
				Mark(ierr.ErrInvalidOperation)
		}
		next = last + 1
	}

	return fmt.Sprintf("%s-%0*d", scope, padding, next), nil
}
