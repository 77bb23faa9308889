package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeInsufficientStock, status: http.StatusUnprocessableEntity, publicMsg: "insufficient stock", detailsOK: true},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflicting concurrent update, retry the operation", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error"},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing quantity")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing quantity" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "quantity"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "apply movement")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeInsufficientStock, "no units left")
	wrapped := Wrap(CodeDependency, err, "outer")

	if typed := As(wrapped); typed == nil || typed.Code() != CodeDependency {
		t.Fatalf("expected outermost typed error, got %v", typed)
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatalf("plain errors should not convert")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(New(CodeConflict, "serialization failure")) {
		t.Fatal("conflict should be retryable")
	}
	if IsRetryable(New(CodeInsufficientStock, "empty")) {
		t.Fatal("insufficient stock must not be retryable")
	}
	if IsRetryable(stdErrors.New("plain")) {
		t.Fatal("untyped errors are not retryable")
	}
}
