package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cruzeta-api/internal/apperr"
)

func TestFromError_Kinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", apperr.NotFound("request", 4), http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", apperr.Forbidden("nope"), http.StatusForbidden, "FORBIDDEN"},
		{"invalid input", apperr.InvalidInput("quantity", "must be positive"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"invalid state", apperr.InvalidState("request", 4, "is REJEITADO"), http.StatusConflict, "INVALID_STATE"},
		{"insufficient stock", apperr.InsufficientStock(1, 2, -5), http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"conflict", apperr.Conflict("request", 4, "changed"), http.StatusConflict, "CONFLICT"},
		{"wrapped", fmt.Errorf("outer: %w", apperr.NotFound("item", 1)), http.StatusNotFound, "NOT_FOUND"},
		{"plain", errors.New("db exploded"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"api error", Unauthorized(""), http.StatusUnauthorized, "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got.StatusCode != tt.status || got.Code != tt.code {
				t.Errorf("expected %d %s, got %d %s", tt.status, tt.code, got.StatusCode, got.Code)
			}
		})
	}
}

func TestFromError_HidesInternalCause(t *testing.T) {
	got := FromError(errors.New("pq: password authentication failed"))
	if got.Message != "An unexpected error occurred" {
		t.Errorf("expected generic message, got %q", got.Message)
	}
}

func TestToJSON_FieldDetails(t *testing.T) {
	data := FromError(apperr.InvalidInput("reason", "is required")).ToJSON()

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string       `json:"code"`
			Details []FieldError `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if body.Success {
		t.Error("expected success=false")
	}
	if len(body.Error.Details) != 1 || body.Error.Details[0].Field != "reason" {
		t.Errorf("unexpected details %+v", body.Error.Details)
	}
}
