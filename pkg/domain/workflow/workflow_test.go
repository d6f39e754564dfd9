package workflow

import (
	"strings"
	"testing"

	"github.com/flowkeep/flowkeep/pkg/domain"
)

func validRevision() Revision {
	return Revision{
		Namespace:   "ns",
		ID:          "wf",
		Version:     1,
		Name:        "Example",
		Description: "An example workflow",
		Steps:       []Step{&LogTask{Message: "hi"}},
	}
}

func TestRevisionValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Revision)
		wantKind domain.Kind
	}{
		{name: "valid", mutate: func(r *Revision) {}},
		{name: "blank namespace", mutate: func(r *Revision) { r.Namespace = "" }, wantKind: domain.KindMalformedIdentifier},
		{name: "namespace with slash", mutate: func(r *Revision) { r.Namespace = "a/b" }, wantKind: domain.KindMalformedIdentifier},
		{name: "identifier too long", mutate: func(r *Revision) { r.ID = strings.Repeat("x", 101) }, wantKind: domain.KindMalformedIdentifier},
		{name: "zero version", mutate: func(r *Revision) { r.Version = 0 }, wantKind: domain.KindMalformedIdentifier},
		{name: "blank name", mutate: func(r *Revision) { r.Name = "" }, wantKind: domain.KindInvalidRevision},
		{name: "name too long", mutate: func(r *Revision) { r.Name = strings.Repeat("n", 256) }, wantKind: domain.KindInvalidRevision},
		{name: "blank description", mutate: func(r *Revision) { r.Description = "" }, wantKind: domain.KindInvalidRevision},
		{name: "description too long", mutate: func(r *Revision) { r.Description = strings.Repeat("d", 1001) }, wantKind: domain.KindInvalidRevision},
		{name: "no steps", mutate: func(r *Revision) { r.Steps = nil }, wantKind: domain.KindInvalidRevision},
		{
			name: "unknown parameter type",
			mutate: func(r *Revision) {
				r.Parameters = []ParameterDefinition{{Name: "p", Type: "DATETIME"}}
			},
			wantKind: domain.KindInvalidRevision,
		},
		{
			name: "duplicate parameter name",
			mutate: func(r *Revision) {
				r.Parameters = []ParameterDefinition{
					{Name: "p", Type: "STRING"},
					{Name: "p", Type: "INTEGER"},
				}
			},
			wantKind: domain.KindInvalidRevision,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rev := validRevision()
			tt.mutate(&rev)
			err := rev.Validate()
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			kind, ok := domain.KindOf(err)
			if !ok {
				t.Fatalf("expected a domain error, got %v", err)
			}
			if kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", kind, tt.wantKind)
			}
		})
	}
}

func TestRevisionValidateNestingCap(t *testing.T) {
	var step Step = &LogTask{Message: "leaf"}
	for i := 0; i < 40; i++ {
		step = &Sequence{Steps: []Step{step}}
	}
	rev := validRevision()
	rev.Steps = []Step{step}

	err := rev.Validate()
	kind, ok := domain.KindOf(err)
	if !ok || kind != domain.KindInvalidRevision {
		t.Fatalf("expected InvalidRevision for deep nesting, got %v", err)
	}
}

func TestIDValidate(t *testing.T) {
	tests := []struct {
		name      string
		id        ID
		wantError bool
	}{
		{name: "valid", id: ID{Namespace: "team-a", ID: "flow_1"}},
		{name: "max length", id: ID{Namespace: strings.Repeat("a", 100), ID: "x"}},
		{name: "blank namespace", id: ID{Namespace: "", ID: "x"}, wantError: true},
		{name: "blank id", id: ID{Namespace: "ns", ID: ""}, wantError: true},
		{name: "spaces", id: ID{Namespace: "n s", ID: "x"}, wantError: true},
		{name: "dots", id: ID{Namespace: "ns", ID: "a.b"}, wantError: true},
		{name: "too long", id: ID{Namespace: strings.Repeat("a", 101), ID: "x"}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if tt.wantError && err == nil {
				t.Error("expected an error")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
