package providers

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("socket closed")
	err := Wrap(ErrTransient, "catalog", "details", "fetch failed", base)
	if !errors.Is(err, ErrTransient) {
		t.Error("wrapped error should match ErrTransient")
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should preserve the cause")
	}
	want := "transient failure: catalog: details: fetch failed: socket closed"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "ratings", "fetch", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Error("nil marker should default to ErrTransient")
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", Wrap(ErrRateLimited, "video", "search", "", nil), true},
		{"status 429 text", errors.New("unexpected status 429"), true},
		{"quota exceeded body", errors.New(`status 403: "quota" has been "exceeded"`), true},
		{"plain forbidden", ErrForbidden, false},
		{"not found", ErrNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRateLimited(tt.err); got != tt.want {
				t.Errorf("IsRateLimited(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", fmt.Errorf("%w: boom", ErrTransient), true},
		{"gateway", errors.New("server returned 503"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"not found", ErrNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
