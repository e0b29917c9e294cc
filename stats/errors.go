package stats

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the domain taxonomy. Everything in this list is recovered
// at the facade boundary; the chat layer only ever sees result objects carrying
// a stale/unavailable flag.
var (
	// ErrNotFound means the requested entity has no data yet.
	ErrNotFound = errors.New("no data for entity")
	// ErrNoData means trend computation found fewer than two usable data points.
	ErrNoData = errors.New("insufficient history for trend")
	// ErrQuotaExhausted means the upstream call budget for the current window is spent.
	ErrQuotaExhausted = errors.New("upstream quota exhausted")
	// ErrUpstreamUnavailable folds network errors, rate-limit responses and
	// malformed payloads from the metrics API into one condition.
	ErrUpstreamUnavailable = errors.New("upstream metrics api unavailable")
)

// StorageError wraps persistence failures. Callers treat it as non-fatal:
// log and continue with the in-memory result.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ClassifyUpstreamError maps raw fetch errors onto the taxonomy. Quota-style
// rejections from the provider map to ErrQuotaExhausted so the caller stops
// spending budget for the rest of the window; everything else that isn't nil
// becomes ErrUpstreamUnavailable.
func ClassifyUpstreamError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrQuotaExhausted) || errors.Is(err, ErrUpstreamUnavailable) {
		return err
	}
	lower := strings.ToLower(err.Error())

	quotaPatterns := []string{
		"quotaexceeded",
		"quota exceeded",
		"dailylimitexceeded",
		"ratelimitexceeded",
	}
	for _, p := range quotaPatterns {
		if strings.Contains(lower, p) {
			return fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
