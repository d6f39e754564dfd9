package validation

import (
	"errors"
	"testing"

	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/domain/workflow"
)

func schema(defs ...workflow.ParameterDefinition) []workflow.ParameterDefinition {
	return defs
}

func TestValidateMissingRequired(t *testing.T) {
	result := Validate(map[string]interface{}{}, schema(
		workflow.ParameterDefinition{Name: "u", Type: "STRING", Required: true},
	))

	if result.Valid() {
		t.Fatal("expected validation failure")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(result.Errors))
	}
	e := result.Errors[0]
	if e.Name != "u" || e.Reason != "required parameter missing" || e.Provided != nil {
		t.Errorf("unexpected error %+v", e)
	}
}

func TestValidateTypeCoercion(t *testing.T) {
	intSchema := schema(workflow.ParameterDefinition{Name: "n", Type: "INTEGER", Required: true})

	result := Validate(map[string]interface{}{"n": "42"}, intSchema)
	if !result.Valid() {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if result.Validated["n"] != 42 {
		t.Errorf("n = %v, want 42", result.Validated["n"])
	}

	result = Validate(map[string]interface{}{"n": "3.14"}, intSchema)
	if result.Valid() {
		t.Fatal("expected failure for float string")
	}
	if result.Errors[0].Reason != "must be an integer" {
		t.Errorf("reason = %q", result.Errors[0].Reason)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	result := Validate(
		map[string]interface{}{
			"count":  "not-a-number",
			"rogue":  1,
			"rogue2": 2,
		},
		schema(
			workflow.ParameterDefinition{Name: "count", Type: "INTEGER", Required: true},
			workflow.ParameterDefinition{Name: "who", Type: "STRING", Required: true},
		),
	)

	if len(result.Errors) != 4 {
		t.Fatalf("expected 4 errors (type + missing + 2 unknown), got %d: %+v", len(result.Errors), result.Errors)
	}
	byName := map[string]ParamError{}
	for _, e := range result.Errors {
		byName[e.Name] = e
	}
	if byName["count"].Reason != "must be an integer" {
		t.Errorf("count: %+v", byName["count"])
	}
	if byName["who"].Reason != "required parameter missing" {
		t.Errorf("who: %+v", byName["who"])
	}
	if byName["rogue"].Reason != "unknown parameter" || byName["rogue2"].Reason != "unknown parameter" {
		t.Errorf("unknown params: %+v", result.Errors)
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	result := Validate(map[string]interface{}{}, schema(
		workflow.ParameterDefinition{Name: "retries", Type: "INTEGER", Default: 3},
		workflow.ParameterDefinition{Name: "note", Type: "STRING"},
	))

	if !result.Valid() {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if result.Validated["retries"] != 3 {
		t.Errorf("retries = %v, want default 3", result.Validated["retries"])
	}
	if _, ok := result.Validated["note"]; ok {
		t.Error("optional parameter without default should stay absent")
	}
}

func TestValidateProvidedOverridesDefault(t *testing.T) {
	result := Validate(map[string]interface{}{"retries": 5}, schema(
		workflow.ParameterDefinition{Name: "retries", Type: "INTEGER", Default: 3},
	))
	if result.Validated["retries"] != 5 {
		t.Errorf("retries = %v, want 5", result.Validated["retries"])
	}
}

func TestDomainError(t *testing.T) {
	ok := Validate(map[string]interface{}{}, nil)
	if err := DomainError(ok); err != nil {
		t.Errorf("valid result should map to nil, got %v", err)
	}

	bad := Validate(map[string]interface{}{"x": 1}, nil)
	err := DomainError(bad)
	kind, isDomain := domain.KindOf(err)
	if !isDomain || kind != domain.KindParameterValidation {
		t.Fatalf("expected ParameterValidation, got %v", err)
	}
	var agg *AggregateError
	if !errors.As(err, &agg) || len(agg.Errors) != 1 {
		t.Errorf("aggregate not carried: %v", err)
	}
}
