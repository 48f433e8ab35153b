package apperr

import (
	"fmt"
	"time"
)

// Category classifies failures by kind rather than by concrete type. Retry
// policy and circuit breaking hang off the category, not the code.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryAuthentication Category = "authentication"
	CategoryAuthorization  Category = "authorization"
	CategoryPool           Category = "pool"
	CategoryPayment        Category = "payment"
	CategoryNetwork        Category = "network"
	CategorySecurity       Category = "security"
	CategorySystem         Category = "system"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RetryDelay is the caller-facing delay suggested for retryable categories.
func RetryDelay(cat Category) time.Duration {
	switch cat {
	case CategoryNetwork:
		return time.Second
	case CategoryPayment:
		return 5 * time.Second
	case CategoryPool:
		return 30 * time.Second
	default:
		return 0
	}
}

type Error struct {
	Code       string
	Message    string
	Category   Category
	Severity   Severity
	Retryable  bool
	RetryAfter time.Duration
	SupportRef string
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) WithCause(err error) *Error {
	c := *e
	c.cause = err
	return &c
}

func (e *Error) WithRetryAfter(d time.Duration) *Error {
	c := *e
	c.RetryAfter = d
	return &c
}

func (e *Error) WithSupportRef(ref string) *Error {
	c := *e
	c.SupportRef = ref
	return &c
}

func Validation(code, msg string) *Error {
	return &Error{Code: code, Message: msg, Category: CategoryValidation, Severity: SeverityLow}
}

func Authorization(code, msg string) *Error {
	return &Error{Code: code, Message: msg, Category: CategoryAuthorization, Severity: SeverityMedium}
}

func Security(code, msg string) *Error {
	return &Error{Code: code, Message: msg, Category: CategorySecurity, Severity: SeverityCritical}
}

func Pool(code, msg string) *Error {
	return &Error{Code: code, Message: msg, Category: CategoryPool, Severity: SeverityHigh,
		Retryable: true, RetryAfter: RetryDelay(CategoryPool)}
}

func Payment(code, msg string) *Error {
	return &Error{Code: code, Message: msg, Category: CategoryPayment, Severity: SeverityHigh,
		Retryable: true, RetryAfter: RetryDelay(CategoryPayment)}
}

func Network(code, msg string) *Error {
	return &Error{Code: code, Message: msg, Category: CategoryNetwork, Severity: SeverityMedium,
		Retryable: true, RetryAfter: RetryDelay(CategoryNetwork)}
}

func Throttled(msg string) *Error {
	return &Error{Code: "RateLimited", Message: msg, Category: CategorySystem,
		Severity: SeverityLow, Retryable: true}
}

func System(code, msg string) *Error {
	return &Error{Code: code, Message: msg, Category: CategorySystem, Severity: SeverityHigh}
}

// As unwraps err into an *Error when possible.
func As(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// Sanitized reduces an error to what production responses may carry. Internal
// causes and stack detail never leave the process.
func Sanitized(err error) map[string]interface{} {
	if e, ok := As(err); ok {
		out := map[string]interface{}{
			"code":      e.Code,
			"message":   e.Message,
			"retryable": e.Retryable,
		}
		if e.SupportRef != "" {
			out["support_ref"] = e.SupportRef
		}
		return out
	}
	return map[string]interface{}{
		"code":      "InternalError",
		"message":   "internal error",
		"retryable": false,
	}
}
