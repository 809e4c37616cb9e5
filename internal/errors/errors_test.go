package errors

import (
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := &AppError{
		Code:    ErrNotFound,
		Message: "folder not found: 7",
	}

	expected := "NOT_FOUND: folder not found: 7"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewValidation(t *testing.T) {
	err := NewValidation("name must not be blank")

	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if err.Message != "name must not be blank" {
		t.Errorf("Message = %q, want %q", err.Message, "name must not be blank")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("host rule", "example.com")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Details["identifier"] != "example.com" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "example.com")
	}
	if err.Details["kind"] != "host rule" {
		t.Errorf("Details[kind] = %v, want %q", err.Details["kind"], "host rule")
	}
}

func TestNewFolderNotEmpty(t *testing.T) {
	err := NewFolderNotEmpty(12, 2, 3)

	if err.Code != ErrFolderNotEmpty {
		t.Errorf("Code = %q, want %q", err.Code, ErrFolderNotEmpty)
	}
	if err.Details["child_folders"] != 2 {
		t.Errorf("Details[child_folders] = %v, want 2", err.Details["child_folders"])
	}
	if err.Details["host_rules"] != 3 {
		t.Errorf("Details[host_rules] = %v, want 3", err.Details["host_rules"])
	}
}

func TestNewDatabase(t *testing.T) {
	cause := fmt.Errorf("disk I/O error")
	err := NewDatabase(cause)

	if err.Code != ErrDatabase {
		t.Errorf("Code = %q, want %q", err.Code, ErrDatabase)
	}
	// Message must not leak storage internals
	if err.Message != "database error" {
		t.Errorf("Message = %q, want %q", err.Message, "database error")
	}
	if err.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), cause)
	}
	if !Internal(err) {
		t.Error("Internal() = false, want true")
	}
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		err := NewNotFound("folder", 1)
		if !Is(err, ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		err := NewNotFound("folder", 1)
		if Is(err, ErrConflict) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-AppError", func(t *testing.T) {
		err := fmt.Errorf("plain error")
		if Is(err, ErrNotFound) {
			t.Error("Is() = true, want false for non-AppError")
		}
	})

	t.Run("wrapped AppError", func(t *testing.T) {
		inner := NewConflict("duplicate")
		wrapped := fmt.Errorf("create folder: %w", inner)
		if !Is(wrapped, ErrConflict) {
			t.Error("Is() = false, want true for wrapped AppError")
		}
	})
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}

	v := NewValidation("bad")
	if Wrap(v) != v {
		t.Error("Wrap should pass AppErrors through unchanged")
	}

	w := Wrap(fmt.Errorf("boom"))
	if w.Code != ErrUnknown {
		t.Errorf("Code = %q, want %q", w.Code, ErrUnknown)
	}
	if CodeOf(fmt.Errorf("boom")) != ErrUnknown {
		t.Error("CodeOf(plain) should be UNKNOWN")
	}
}
