package stats

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStorageErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &StorageError{Op: "record snapshot", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected StorageError to unwrap to inner error")
	}
	if !IsStorageError(err) {
		t.Error("IsStorageError = false, want true")
	}
	if IsStorageError(inner) {
		t.Error("IsStorageError on plain error = true, want false")
	}
	if got := err.Error(); got != "storage record snapshot: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestClassifyUpstreamError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"quotaExceeded reason", errors.New("googleapi: Error 403: quotaExceeded"), ErrQuotaExhausted},
		{"quota exceeded text", errors.New("quota exceeded for quota metric"), ErrQuotaExhausted},
		{"dailyLimitExceeded", errors.New("googleapi: Error 403: dailyLimitExceeded"), ErrQuotaExhausted},
		{"rateLimitExceeded", errors.New("googleapi: Error 403: rateLimitExceeded"), ErrQuotaExhausted},
		{"server error", errors.New("googleapi: Error 500: backendError"), ErrUpstreamUnavailable},
		{"network error", fmt.Errorf("Get \"https://example\": dial tcp: timeout"), ErrUpstreamUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyUpstreamError(tc.err)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("got %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Errorf("ClassifyUpstreamError(%v) = %v, want %v", tc.err, got, tc.want)
			}
			// The original cause stays visible for logs.
			if !strings.Contains(got.Error(), tc.err.Error()) {
				t.Errorf("classified error lost the original cause: %v", got)
			}
		})
	}
}
