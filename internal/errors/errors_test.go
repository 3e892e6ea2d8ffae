package errors

import (
	stderrors "errors"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	e := Validation("name is required")
	if e.Error() != "name is required" {
		t.Errorf("got %q", e.Error())
	}

	wrapped := Wrap(stderrors.New("disk full"), ErrInternal, "persist failed")
	if wrapped.Error() != "persist failed: disk full" {
		t.Errorf("got %q", wrapped.Error())
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("cause")
	wrapped := Wrap(cause, ErrInternal, "context")
	if !stderrors.Is(wrapped, cause) {
		t.Error("wrapped error does not unwrap to cause")
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		want bool
	}{
		{"matching kind", NotFound("x"), ErrNotFound, true},
		{"different kind", NotFound("x"), ErrValidation, false},
		{"collision", Collision("taken"), ErrCollision, true},
		{"invalid transition", InvalidTransitionf("from %s", "ended"), ErrInvalidTransition, true},
		{"plain error", stderrors.New("x"), ErrNotFound, false},
		{"nil", nil, ErrNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.want {
				t.Errorf("IsKind = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorsAs(t *testing.T) {
	var appErr *Error
	if !stderrors.As(SessionState("frozen"), &appErr) {
		t.Fatal("errors.As failed on application error")
	}
	if appErr.Kind != ErrSessionState {
		t.Errorf("got kind %d, want ErrSessionState", appErr.Kind)
	}
}
