package purchases

import (
	"errors"
	"fmt"

	"github.com/glowdesk/glowdesk/internal/shared"
)

// PartialFailureError reports a failed purchase whose rollback did not
// complete. Stored data may be inconsistent until an operator repairs it.
type PartialFailureError struct {
	Step         string
	Cause        error
	PurchaseID   string
	Compensation []error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("purchases: %s failed (%v) and rollback of purchase %q left %d error(s): %v",
		e.Step, e.Cause, e.PurchaseID, len(e.Compensation), errors.Join(e.Compensation...))
}

// Unwrap exposes the step failure.
func (e *PartialFailureError) Unwrap() error {
	return e.Cause
}

// Is matches shared.ErrPartialFailure.
func (e *PartialFailureError) Is(target error) bool {
	return target == shared.ErrPartialFailure
}
