package workflow

import (
	"testing"

	"github.com/flowkeep/flowkeep/pkg/domain/execution"
)

func TestEvaluateConditionTruthiness(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		params    map[string]interface{}
		want      bool
	}{
		{name: "true string", condition: "${flag}", params: map[string]interface{}{"flag": "true"}, want: true},
		{name: "one string", condition: "${flag}", params: map[string]interface{}{"flag": "1"}, want: true},
		{name: "yes string", condition: "${flag}", params: map[string]interface{}{"flag": "yes"}, want: true},
		{name: "on string", condition: "${flag}", params: map[string]interface{}{"flag": "ON"}, want: true},
		{name: "false string", condition: "${flag}", params: map[string]interface{}{"flag": "false"}, want: false},
		{name: "zero string", condition: "${flag}", params: map[string]interface{}{"flag": "0"}, want: false},
		{name: "no string trimmed", condition: "${flag}", params: map[string]interface{}{"flag": " no "}, want: false},
		{name: "off string", condition: "${flag}", params: map[string]interface{}{"flag": "off"}, want: false},
		{name: "empty string", condition: "${flag}", params: map[string]interface{}{"flag": ""}, want: false},
		{name: "numeric zero", condition: "${n}", params: map[string]interface{}{"n": 0}, want: false},
		{name: "numeric nonzero", condition: "${n}", params: map[string]interface{}{"n": 7}, want: true},
		{name: "float zero", condition: "${f}", params: map[string]interface{}{"f": 0.0}, want: false},
		{name: "bool true", condition: "${b}", params: map[string]interface{}{"b": true}, want: true},
		{name: "arbitrary string truthy", condition: "${s}", params: map[string]interface{}{"s": "anything"}, want: true},
		{name: "unknown name falsy", condition: "${missing}", params: map[string]interface{}{}, want: false},
		{name: "bare name lookup", condition: "flag", params: map[string]interface{}{"flag": "true"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execCtx := execution.NewContext(tt.params)
			if got := EvaluateCondition(tt.condition, execCtx); got != tt.want {
				t.Errorf("EvaluateCondition(%q) = %v, want %v", tt.condition, got, tt.want)
			}
		})
	}
}

func TestEvaluateConditionEquality(t *testing.T) {
	tests := []struct {
		name      string
		condition string
		params    map[string]interface{}
		want      bool
	}{
		{name: "string match", condition: "${env} == 'prod'", params: map[string]interface{}{"env": "prod"}, want: true},
		{name: "string mismatch", condition: "${env} == 'prod'", params: map[string]interface{}{"env": "dev"}, want: false},
		{name: "number compared by representation", condition: "${n} == '42'", params: map[string]interface{}{"n": 42}, want: true},
		{name: "unknown name never equal", condition: "${missing} == ''", params: map[string]interface{}{}, want: false},
		{name: "empty literal", condition: "${s} == ''", params: map[string]interface{}{"s": ""}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execCtx := execution.NewContext(tt.params)
			if got := EvaluateCondition(tt.condition, execCtx); got != tt.want {
				t.Errorf("EvaluateCondition(%q) = %v, want %v", tt.condition, got, tt.want)
			}
		})
	}
}

func TestEvaluateConditionStepOutputFallback(t *testing.T) {
	execCtx := execution.NewContext(map[string]interface{}{}).WithStepOutput("check", "true")
	if !EvaluateCondition("${check}", execCtx) {
		t.Error("step output should resolve when no input parameter shadows it")
	}

	shadowed := execution.NewContext(map[string]interface{}{"check": "false"}).WithStepOutput("check", "true")
	if EvaluateCondition("${check}", shadowed) {
		t.Error("input parameter should take precedence over step output")
	}
}
