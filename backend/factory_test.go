package backend

import (
	"testing"

	"ember/model"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		kind        model.BackendKind
		expectError bool
	}{
		{"session backend", model.BackendKindSession, false},
		{"container backend", model.BackendKindContainer, false},
		{"unknown kind", model.BackendKind("cloud"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := New(tt.kind, Config{})
			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b == nil {
				t.Fatal("expected a backend, got nil")
			}
		})
	}
}

func TestNewReturnsMatchingVariant(t *testing.T) {
	b, err := New(model.BackendKindSession, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.(*SessionBackend); !ok {
		t.Errorf("expected *SessionBackend, got %T", b)
	}

	b, err = New(model.BackendKindContainer, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := b.(*ContainerBackend); !ok {
		t.Errorf("expected *ContainerBackend, got %T", b)
	}
}
