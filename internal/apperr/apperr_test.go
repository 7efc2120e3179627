package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIs_MatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("item", 7))

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected wrapped error to match ErrNotFound")
	}
	if errors.Is(err, ErrConflict) {
		t.Errorf("did not expect not-found error to match ErrConflict")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"invalid input", InvalidInput("quantity", "must be positive"), KindInvalidInput},
		{"wrapped conflict", fmt.Errorf("x: %w", Conflict("request", 1, "changed")), KindConflict},
		{"plain error", errors.New("boom"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	if got := NotFound("request", 3).Error(); got != "request 3: not found" {
		t.Errorf("unexpected message %q", got)
	}
	if got := InvalidInput("reason", "is required").Error(); got != "reason: is required" {
		t.Errorf("unexpected message %q", got)
	}
	if got := InsufficientStock(4, 2, -5).Error(); got != "item 4: adjustment -5 would leave -3 on hand" {
		t.Errorf("unexpected message %q", got)
	}
}
