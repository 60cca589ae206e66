package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "module not found")
		if err.Error() != "[NOT_FOUND] module not found" {
			t.Errorf("expected [NOT_FOUND] module not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("disk full")
		err := Wrap(original, CodeInternal, "write manifest")
		expected := "[INTERNAL_ERROR] write manifest: disk full"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to original")
		}
	})

	t.Run("ContextIsSorted", func(t *testing.T) {
		err := New(CodeValidationError, "bad manifest").
			WithContext(CtxPath, "addons/sale/manifest.toml").
			WithContext(CtxModule, "sale")
		expected := "[VALIDATION_ERROR] bad manifest (module=sale, path=addons/sale/manifest.toml)"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := fmt.Errorf("load: %w", New(CodeValidationError, "invalid state"))
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("AddContextToPlainError", func(t *testing.T) {
		err := AddContext(errors.New("boom"), CtxOperation, "states")
		if !IsCode(err, CodeInternal) {
			t.Fatalf("expected internal code, got %v", err)
		}
		var de *DomainError
		if !errors.As(err, &de) || de.Context[CtxOperation] != "states" {
			t.Fatalf("expected operation context, got %v", err)
		}
	})
}
