// Package errs defines the error taxonomy from spec.md §7 as sentinel
// values, checked with errors.Is rather than a custom error-stack type.
package errs

import "errors"

// Input errors — surfaced to the HTTP caller as 400.
var (
	ErrMalformedHeader   = errors.New("malformed header")
	ErrEmptyValidatorSet = errors.New("empty validator set")
	ErrBadApprovalCount  = errors.New("approval count does not match validator count")
)

// Proving errors — retried per-task, dead-lettered after 3 attempts;
// surfaced per-job as 500 with a FAILED status.
var (
	ErrCircuitBuild  = errors.New("circuit build failed")
	ErrWitnessBind   = errors.New("witness bind failed")
	ErrProve         = errors.New("prove failed")
)

// Consistency errors — fatal for the job, never retried.
var (
	ErrBelowThreshold  = errors.New("signed stake below two-thirds threshold")
	ErrHashMismatch    = errors.New("hash mismatch")
	ErrHeightMismatch  = errors.New("height mismatch")
	ErrEpochIDMismatch = errors.New("epoch id mismatch")
)

// Transport and timeout errors.
var (
	ErrBusDisconnected = errors.New("bus disconnected")
	ErrTaskTimeout     = errors.New("task timed out")
	ErrJobTimeout      = errors.New("job timed out")
)
