// Package validation implements the parameter validator: given provided
// values and a parameter schema, it resolves canonical values and aggregates
// every error found rather than stopping at the first one.
package validation

import (
	"fmt"
	"sort"

	"github.com/flowkeep/flowkeep/pkg/domain"
	"github.com/flowkeep/flowkeep/pkg/domain/workflow"
)

// ParamError is one per-parameter validation failure: a missing required
// value, an unrecognized key, or a type coercion failure.
type ParamError struct {
	Name     string      `json:"name"`
	Reason   string      `json:"reason"`
	Provided interface{} `json:"provided"`
}

// Result is the outcome of Validate: every error found, plus the canonical
// values resolved for every parameter that validated successfully
// (including schema defaults for absent optional fields).
type Result struct {
	Errors    []ParamError
	Validated map[string]interface{}
}

// Valid reports whether Validate found zero errors.
func (r Result) Valid() bool { return len(r.Errors) == 0 }

// Validate resolves provided against schema. It never logs the values
// themselves; only names and counts are safe to log.
func Validate(provided map[string]interface{}, schema []workflow.ParameterDefinition) Result {
	result := Result{Validated: make(map[string]interface{}, len(schema))}
	known := make(map[string]bool, len(schema))

	for _, def := range schema {
		known[def.Name] = true
		value, present := provided[def.Name]
		switch {
		case present:
			paramType, ok := workflow.LookupParameterType(def.Type)
			if !ok {
				result.Errors = append(result.Errors, ParamError{
					Name: def.Name, Reason: fmt.Sprintf("unknown parameter type %q", def.Type), Provided: value,
				})
				continue
			}
			converted, typeErr := paramType.ValidateAndConvert(def.Name, value)
			if typeErr != nil {
				result.Errors = append(result.Errors, ParamError{
					Name: typeErr.Name, Reason: typeErr.Reason, Provided: typeErr.Provided,
				})
				continue
			}
			result.Validated[def.Name] = converted
		case def.Required:
			result.Errors = append(result.Errors, ParamError{
				Name: def.Name, Reason: "required parameter missing", Provided: nil,
			})
		case def.Default != nil:
			result.Validated[def.Name] = def.Default
		}
	}

	for name, value := range provided {
		if !known[name] {
			result.Errors = append(result.Errors, ParamError{
				Name: name, Reason: "unknown parameter", Provided: value,
			})
		}
	}

	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Name < result.Errors[j].Name })
	return result
}

// AggregateError is the error value carried by a ParameterValidation domain
// error, holding every failure Validate collected.
type AggregateError struct {
	Errors []ParamError
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("%d parameter validation error(s)", len(e.Errors))
}

// DomainError wraps result as a single ParameterValidation domain error, or
// returns nil if result is valid.
func DomainError(result Result) error {
	if result.Valid() {
		return nil
	}
	return domain.NewParameterValidation(fmt.Sprintf("%d parameter validation error(s)", len(result.Errors)), &AggregateError{Errors: result.Errors})
}
