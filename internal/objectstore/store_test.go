package objectstore

import (
	"errors"
	"testing"
)

func TestObjectErrorFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      *ObjectError
		expected string
	}{
		{
			name: "get not found",
			err: &ObjectError{
				Op:  "Get",
				Key: "audit/tenant-a/trade-events/2025/01/02/rec-1.json",
				Err: ErrNotFound,
			},
			expected: `objectstore: Get "audit/tenant-a/trade-events/2025/01/02/rec-1.json": object not found`,
		},
		{
			name: "put access denied",
			err: &ObjectError{
				Op:  "Put",
				Key: "audit/tenant-b/ai-traces/2025/01/02/rec-2.json",
				Err: ErrAccessDenied,
			},
			expected: `objectstore: Put "audit/tenant-b/ai-traces/2025/01/02/rec-2.json": access denied`,
		},
		{
			name: "restore in progress",
			err: &ObjectError{
				Op:  "Restore",
				Key: "archive/tenant-a/risk-events/2024/03/09/rec-3.json",
				Err: ErrRestoreInProgress,
			},
			expected: `objectstore: Restore "archive/tenant-a/risk-events/2024/03/09/rec-3.json": restore already in progress`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("ObjectError.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestObjectErrorUnwrap(t *testing.T) {
	err := &ObjectError{
		Op:  "Get",
		Key: "test/key",
		Err: ErrNotFound,
	}

	if !errors.Is(err, ErrNotFound) {
		t.Error("ObjectError should unwrap to ErrNotFound")
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should see through ObjectError")
	}
	if errors.Is(err, ErrAccessDenied) {
		t.Error("ObjectError should not unwrap to ErrAccessDenied")
	}
}

func TestErrorSentinels(t *testing.T) {
	errs := []error{
		ErrNotFound,
		ErrPreconditionFailed,
		ErrBucketNotFound,
		ErrAccessDenied,
		ErrRestoreInProgress,
		ErrInvalidObjectState,
		ErrStoreClosed,
		ErrCircuitOpen,
	}

	for i, e1 := range errs {
		for j, e2 := range errs {
			if i != j && errors.Is(e1, e2) {
				t.Errorf("error %v should not match %v", e1, e2)
			}
		}
	}
}

func TestStorageClassIsArchive(t *testing.T) {
	tests := []struct {
		class StorageClass
		want  bool
	}{
		{"", false},
		{StorageClassStandard, false},
		{StorageClassGlacier, true},
		{StorageClassDeepArchive, true},
	}
	for _, tt := range tests {
		if got := tt.class.IsArchive(); got != tt.want {
			t.Errorf("%q.IsArchive() = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestPageDone(t *testing.T) {
	if !(Page{}).Done() {
		t.Error("zero Page should be done")
	}
	if (Page{NextCursor: "k"}).Done() {
		t.Error("Page with cursor should not be done")
	}
}
