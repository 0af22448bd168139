package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNew_MatchesKind(t *testing.T) {
	errGone := New(ErrNotFound, "assignment not found")
	if !errors.Is(errGone, ErrNotFound) {
		t.Error("expected sentinel to match ErrNotFound")
	}
	if errors.Is(errGone, ErrInvalidState) {
		t.Error("sentinel must not match another kind")
	}
	if errGone.Error() != "assignment not found" {
		t.Errorf("unexpected message %q", errGone.Error())
	}
}

func TestStatus(t *testing.T) {
	errAlready := New(ErrInvalidState, "assignment already finished")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", New(ErrNotFound, "x"), http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", New(ErrNotFound, "x")), http.StatusNotFound},
		{"invalid state", errAlready, http.StatusBadRequest},
		{"invalid input", Invalid("bad %s", "status"), http.StatusBadRequest},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status(tt.err); got != tt.want {
				t.Errorf("Status() = %d, want %d", got, tt.want)
			}
		})
	}
}
