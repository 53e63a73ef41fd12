// Package source holds the error taxonomy shared by every upstream client.
// The run controller dispatches on these types: auth errors abort the run,
// quota and not-found errors abort only the affected resource.
package source

import (
	"errors"
	"fmt"
	"time"
)

// AuthError indicates invalid or expired credentials. Fatal to the whole run.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%d): %s", e.StatusCode, e.Message)
}

// QuotaExhaustedError indicates the request budget is spent and retries are
// used up. Fatal to the current resource, recoverable for the run.
type QuotaExhaustedError struct {
	ResetAt   time.Time
	Remaining int
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("rate limit exhausted, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// NotFoundError indicates the target repository or endpoint no longer exists.
// Logged and skipped, not fatal to the run.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// ForbiddenError indicates a permission problem on one endpoint, e.g.
// traffic data without push access. The affected repository is skipped.
type ForbiddenError struct {
	Resource string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("access to %s is forbidden", e.Resource)
}

// TransientError wraps timeouts and 5xx responses that survived the bounded
// retry loop.
type TransientError struct {
	Operation string
	Err       error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s failed after retries: %v", e.Operation, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsAuth checks if the error indicates an authentication failure.
func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsQuotaExhausted checks if the error indicates rate limit exhaustion.
func IsQuotaExhausted(err error) bool {
	var quotaErr *QuotaExhaustedError
	return errors.As(err, &quotaErr)
}

// IsNotFound checks if the error indicates a missing resource.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// IsForbidden checks if the error indicates a permission problem.
func IsForbidden(err error) bool {
	var forbiddenErr *ForbiddenError
	return errors.As(err, &forbiddenErr)
}
