package services

// Typed service errors. Handlers map these to HTTP statuses in one place.

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// InvalidSubmissionError carries every violated submission check, not just the
// first one.
type InvalidSubmissionError struct {
	Errors []string
}

func (e *InvalidSubmissionError) Error() string { return "Invalid submission" }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// UnavailableError means the upstream completion provider could not produce a
// quiz. No partial result exists.
type UnavailableError struct{ Message string }

func (e *UnavailableError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }
