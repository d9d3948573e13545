package contracts

import (
	"errors"
	"fmt"
	"time"
)

// ⭐ SSOT: error taxonomy shared by provider, engine, store and pipeline

// ProviderErrorKind classifies a provider failure
type ProviderErrorKind int

const (
	ProviderPermanent ProviderErrorKind = iota
	ProviderNotFound
	ProviderTransient
	ProviderRateLimited
)

func (k ProviderErrorKind) String() string {
	switch k {
	case ProviderNotFound:
		return "not_found"
	case ProviderTransient:
		return "transient"
	case ProviderRateLimited:
		return "rate_limited"
	default:
		return "permanent"
	}
}

// ProviderError is returned by a Provider when a request fails
type ProviderError struct {
	Kind     ProviderErrorKind
	SeriesID string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s %s (%s): %v", e.Op, e.SeriesID, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether a later attempt may succeed
func (e *ProviderError) Retryable() bool {
	return e.Kind == ProviderTransient || e.Kind == ProviderRateLimited
}

// IsNotFound reports whether err is a provider not-found failure
func IsNotFound(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == ProviderNotFound
}

// DataQualityError marks one observation the provider returned in an
// unusable shape. The observation is dropped; the series continues.
type DataQualityError struct {
	SeriesID string
	Date     string
	Raw      string
	Reason   string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality %s@%s: %s (raw %q)", e.SeriesID, e.Date, e.Reason, e.Raw)
}

// IsDataQuality reports whether err is a DataQualityError
func IsDataQuality(err error) bool {
	var dq *DataQualityError
	return errors.As(err, &dq)
}

// ComputationInputError rejects a malformed history handed to the engine
type ComputationInputError struct {
	SeriesID string
	Index    int
	Reason   string
}

func (e *ComputationInputError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("computation input %s at index %d: %s", e.SeriesID, e.Index, e.Reason)
	}
	return fmt.Sprintf("computation input %s: %s", e.SeriesID, e.Reason)
}

// PersistenceError wraps a failed store write. The series transaction has
// been rolled back when this is returned.
type PersistenceError struct {
	SeriesID string
	Op       string
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.SeriesID == "" {
		return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.SeriesID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrNonFinite is wrapped by PersistenceError when a NaN or Inf reaches a write
var ErrNonFinite = errors.New("non-finite value")

// CheckFinite returns a PersistenceError if any value is NaN or Inf
func CheckFinite(op, seriesID string, date time.Time, values ...*float64) error {
	for _, v := range values {
		if !IsFinite(v) {
			return &PersistenceError{
				SeriesID: seriesID,
				Op:       op,
				Err:      fmt.Errorf("%w at %s", ErrNonFinite, FormatDate(date)),
			}
		}
	}
	return nil
}
