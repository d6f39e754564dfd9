package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flowkeep/flowkeep/pkg/domain/execution"
)

// conditionEquality matches the single supported comparison form:
// ${name} == 'literal'
var conditionEquality = regexp.MustCompile(`^\$\{([A-Za-z0-9_.]+)\}\s*==\s*'([^']*)'$`)

// referenceOnly matches a bare ${name} with no comparison, evaluated for
// truthiness.
var referenceOnly = regexp.MustCompile(`^\$\{([A-Za-z0-9_.]+)\}$`)

// EvaluateCondition evaluates the If step's condition language against
// execCtx. It supports two forms:
//
//	${name}              — truthy/falsy coercion of the named value
//	${name} == 'literal' — string-representation equality
//
// name resolves first against input parameters, then step outputs. An
// unresolved name is treated as falsy rather than an error; a missing
// reference behaves the same as an explicit false.
func EvaluateCondition(condition string, execCtx execution.Context) bool {
	trimmed := strings.TrimSpace(condition)

	if m := conditionEquality.FindStringSubmatch(trimmed); m != nil {
		name, literal := m[1], m[2]
		value, ok := resolveName(name, execCtx)
		if !ok {
			return false
		}
		return stringRepr(value) == literal
	}

	if m := referenceOnly.FindStringSubmatch(trimmed); m != nil {
		value, ok := resolveName(m[1], execCtx)
		if !ok {
			return false
		}
		return isTruthy(value)
	}

	// Unrecognized condition text: treat as a bare name lookup for
	// tolerance with documents written before quoting conventions settled.
	value, ok := resolveName(trimmed, execCtx)
	if !ok {
		return false
	}
	return isTruthy(value)
}

func resolveName(name string, execCtx execution.Context) (interface{}, bool) {
	if v, ok := execCtx.InputParameter(name); ok {
		return v, true
	}
	if v, ok := execCtx.StepOutput(name); ok {
		return v, true
	}
	return nil, false
}

func stringRepr(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

// isTruthy applies the condition language's coercion rules: the strings
// "true"/"1"/"yes"/"on" (case-insensitive, trimmed) are truthy;
// "false"/"0"/"no"/"off" are falsy; numeric zero is falsy; anything else
// non-null and non-empty is truthy.
func isTruthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off", "":
			return false
		default:
			return true
		}
	case int:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case float32:
		return v != 0
	default:
		return true
	}
}
