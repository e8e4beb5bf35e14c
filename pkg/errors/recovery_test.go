package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		panic("test panic message")
	}

	err := testFunc()
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if panicErr.Operation != "TestOperation" {
		t.Errorf("Expected operation 'TestOperation', got '%s'", panicErr.Operation)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}
	if want := "supervised: panic in TestOperation: test panic message"; panicErr.Error() != want {
		t.Errorf("Error() = %q, want %q", panicErr.Error(), want)
	}
}

func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		return nil
	}
	if err := testFunc(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}

func TestRecover_WithExistingError(t *testing.T) {
	originalErr := fmt.Errorf("original error")

	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		err = originalErr
		panic("panic after error")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "panic in TestOperation") {
		t.Errorf("Error message should contain panic info: %s", err)
	}
	if !errors.Is(err, originalErr) {
		t.Error("original error should stay in the chain")
	}
}

func TestSafeExecute(t *testing.T) {
	tests := []struct {
		name      string
		fn        func() error
		wantPanic bool
		wantErr   bool
	}{
		{"success", func() error { return nil }, false, false},
		{"function error", func() error { return fmt.Errorf("boom") }, false, true},
		{"string panic", func() error { panic("bad index") }, true, true},
		{"error panic", func() error { panic(fmt.Errorf("inner")) }, true, true},
		{"runtime panic", func() error {
			var s []int
			_ = s[3]
			return nil
		}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("op", tt.fn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			var panicErr *PanicError
			if errors.As(err, &panicErr) != tt.wantPanic {
				t.Errorf("PanicError = %v, want %v", panicErr != nil, tt.wantPanic)
			}
		})
	}
}

func TestPanicError_UnwrapsErrorValue(t *testing.T) {
	inner := fmt.Errorf("inner")
	err := SafeExecute("op", func() error { panic(inner) })
	if !errors.Is(err, inner) {
		t.Error("panic value of type error should be reachable with errors.Is")
	}
}
