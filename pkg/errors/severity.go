// Package errors provides the typed error taxonomy used across ingestion,
// storage, resolution and estimation.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Kind classifies an error for callers that branch on failure mode.
type Kind int

const (
	KindUnknown Kind = iota
	KindFetch
	KindParse
	KindNotFound
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindParse:
		return "parse"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error codes
const (
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeParseFailed      = "PARSE_FAILED"
	ErrCodeMissingAttribute = "MISSING_ATTRIBUTE"
	ErrCodeTooFewRecords    = "TOO_FEW_RECORDS"
	ErrCodePriceNotFound    = "PRICE_NOT_FOUND"
	ErrCodeInvalidDimension = "INVALID_DIMENSION"
	ErrCodeInvalidConfig    = "INVALID_CONFIGURATION"
	ErrCodeInvalidFootprint = "INVALID_FOOTPRINT"
)

// PricingError is a structured error with context.
type PricingError struct {
	Kind      Kind     `json:"kind"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
	Resource  string   `json:"resource,omitempty"`
	Retryable bool     `json:"retryable"`
	Err       error    `json:"-"`
}

func (e *PricingError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Resource != "" {
		msg = fmt.Sprintf("%s (resource: %s)", msg, e.Resource)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PricingError) Unwrap() error { return e.Err }

// Is matches on Kind so callers can test against the sentinels below.
func (e *PricingError) Is(target error) bool {
	t, ok := target.(*PricingError)
	if !ok {
		return false
	}
	return t.Code == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrFetch         = &PricingError{Kind: KindFetch}
	ErrParse         = &PricingError{Kind: KindParse}
	ErrNotFound      = &PricingError{Kind: KindNotFound}
	ErrConfiguration = &PricingError{Kind: KindConfiguration}
)

// NewFetchError wraps a transport or upstream failure. Fetch errors are retryable.
func NewFetchError(resource string, err error) *PricingError {
	return &PricingError{
		Kind:      KindFetch,
		Code:      ErrCodeFetchFailed,
		Message:   "failed to retrieve pricing data",
		Severity:  SeverityError,
		Resource:  resource,
		Retryable: true,
		Err:       err,
	}
}

// NewParseError reports a structurally invalid pricing document.
func NewParseError(message string, err error) *PricingError {
	return &PricingError{
		Kind:     KindParse,
		Code:     ErrCodeParseFailed,
		Message:  message,
		Severity: SeverityError,
		Err:      err,
	}
}

// NewMissingAttributeError reports a document missing a required top-level key.
func NewMissingAttributeError(attribute string) *PricingError {
	return &PricingError{
		Kind:     KindParse,
		Code:     ErrCodeMissingAttribute,
		Message:  fmt.Sprintf("missing required attribute: %s", attribute),
		Severity: SeverityError,
	}
}

// NewTooFewRecordsError reports a document whose usable record count is implausibly low.
func NewTooFewRecordsError(got, minimum int) *PricingError {
	return &PricingError{
		Kind:     KindParse,
		Code:     ErrCodeTooFewRecords,
		Message:  fmt.Sprintf("document yielded %d records, expected at least %d", got, minimum),
		Severity: SeverityError,
	}
}

// NewPriceNotFoundError creates an error for unresolved pricing.
func NewPriceNotFoundError(key string) *PricingError {
	return &PricingError{
		Kind:     KindNotFound,
		Code:     ErrCodePriceNotFound,
		Message:  "no price available at any tier",
		Severity: SeverityWarning,
		Resource: key,
	}
}

// NewInvalidDimensionError rejects an impossible pricing dimension.
func NewInvalidDimensionError(key, reason string) *PricingError {
	return &PricingError{
		Kind:     KindConfiguration,
		Code:     ErrCodeInvalidDimension,
		Message:  reason,
		Severity: SeverityError,
		Resource: key,
	}
}

// NewConfigurationError rejects an invalid caller-supplied configuration.
func NewConfigurationError(message string) *PricingError {
	return &PricingError{
		Kind:     KindConfiguration,
		Code:     ErrCodeInvalidConfig,
		Message:  message,
		Severity: SeverityError,
	}
}

// NewInvalidFootprintError rejects a VM whose sizing cannot be estimated.
func NewInvalidFootprintError(vmID, reason string) *PricingError {
	return &PricingError{
		Kind:     KindConfiguration,
		Code:     ErrCodeInvalidFootprint,
		Message:  reason,
		Severity: SeverityError,
		Resource: vmID,
	}
}

// KindOf returns the Kind of the first PricingError in err's chain.
func KindOf(err error) Kind {
	var pe *PricingError
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var pe *PricingError
	if stderrors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
